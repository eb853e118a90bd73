package http

import (
	"errors"
	"testing"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

func TestParseBBox(t *testing.T) {
	tests := []struct {
		in      string
		want    *domain.Bounds
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "110,-8,111,-7", want: &domain.Bounds{MinLon: 110, MinLat: -8, MaxLon: 111, MaxLat: -7}},
		{in: " 110 , -8 , 111 , -7 ", want: &domain.Bounds{MinLon: 110, MinLat: -8, MaxLon: 111, MaxLat: -7}},
		{in: "110,-8,111", wantErr: true},
		{in: "a,b,c,d", wantErr: true},
		{in: "110,-95,111,-7", wantErr: true},
		{in: "111,-8,110,-7", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseBBox(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidCoordinate) {
				t.Errorf("%q: expected ErrInvalidCoordinate, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("%q: got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseOptionalSource(t *testing.T) {
	for in, want := range map[string]domain.Source{
		"":          "",
		"all":       "",
		"fobi":      domain.SourceFOBI,
		"butterfly": domain.SourceKupunesia,
	} {
		got, err := parseOptionalSource(in)
		if err != nil || got != want {
			t.Errorf("%q: got (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := parseOptionalSource("moss"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestValidZoom(t *testing.T) {
	for _, z := range []float64{0, 6, 12.5, 30} {
		if err := validZoom(z); err != nil {
			t.Errorf("zoom %v: %v", z, err)
		}
	}
	for _, z := range []float64{-0.1, 30.5} {
		if err := validZoom(z); !errors.Is(err, domain.ErrInvalidZoom) {
			t.Errorf("zoom %v: expected ErrInvalidZoom, got %v", z, err)
		}
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, pg := paginate(items, 3, 10)
	if len(page) != 2 || pg.Total != 5 {
		t.Errorf("got %v %+v", page, pg)
	}
	page, _ = paginate(items, 9, 2)
	if page == nil || len(page) != 0 {
		t.Errorf("expected empty non-nil page, got %v", page)
	}
}

func TestETagMatches(t *testing.T) {
	etag := `W/"abc"`
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`W/"abc"`, true},
		{`"abc"`, true},
		{`"x", W/"abc"`, true},
		{"*", true},
		{`"other"`, false},
	}
	for _, tt := range tests {
		if got := etagMatches(tt.header, etag); got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.header, got, tt.want)
		}
	}
}
