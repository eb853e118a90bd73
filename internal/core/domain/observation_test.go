package domain_test

import (
	"errors"
	"testing"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

func f(v float64) *float64 { return &v }

func TestParseSource(t *testing.T) {
	tests := map[string]domain.Source{
		"fobi":        domain.SourceFOBI,
		"TAXA":        domain.SourceTaxa,
		"bird":        domain.SourceBurungnesia,
		"burungnesia": domain.SourceBurungnesia,
		" butterfly ": domain.SourceKupunesia,
		"kupunesia":   domain.SourceKupunesia,
	}
	for in, want := range tests {
		got, err := domain.ParseSource(in)
		if err != nil {
			t.Errorf("ParseSource(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseSource(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := domain.ParseSource("inaturalist"); !errors.Is(err, domain.ErrInvalidSource) {
		t.Errorf("expected ErrInvalidSource, got %v", err)
	}
}

func TestObservationValidate(t *testing.T) {
	tests := []struct {
		name    string
		obs     domain.Observation
		wantErr bool
	}{
		{
			name: "fobi single species",
			obs:  domain.Observation{ID: "fobi_1", Source: domain.SourceFOBI, Latitude: f(-6), Longitude: f(106), Single: &domain.SingleSpecies{ScientificName: "Ficus"}},
		},
		{
			name: "checklist without coordinates",
			obs:  domain.Observation{ID: "burungnesia_1", Source: domain.SourceBurungnesia, Checklist: []domain.ChecklistEntry{{ScientificName: "Lonchura", Count: 3}}},
		},
		{
			name:    "checklist source with single species",
			obs:     domain.Observation{ID: "kupunesia_1", Source: domain.SourceKupunesia, Single: &domain.SingleSpecies{ScientificName: "Troides"}},
			wantErr: true,
		},
		{
			name:    "single source with checklist",
			obs:     domain.Observation{ID: "taxa_1", Source: domain.SourceTaxa, Checklist: []domain.ChecklistEntry{{ScientificName: "x"}}},
			wantErr: true,
		},
		{
			name:    "latitude out of range",
			obs:     domain.Observation{ID: "fobi_2", Source: domain.SourceFOBI, Latitude: f(91), Longitude: f(0)},
			wantErr: true,
		},
		{
			name:    "missing id",
			obs:     domain.Observation{Source: domain.SourceFOBI},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.obs.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpeciesNames(t *testing.T) {
	o := domain.Observation{Checklist: []domain.ChecklistEntry{{ScientificName: "A"}, {ScientificName: "B"}}}
	if got := o.SpeciesNames(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("unexpected names %v", got)
	}
	single := domain.Observation{Single: &domain.SingleSpecies{ScientificName: "C"}}
	if got := single.SpeciesNames(); len(got) != 1 || got[0] != "C" {
		t.Errorf("unexpected names %v", got)
	}
}

func TestDetailLevelGridSize(t *testing.T) {
	if _, ok := domain.DetailMarkers.GridSize(); ok {
		t.Error("markers must not map to a grid")
	}
	if g, ok := domain.DetailMedium.GridSize(); !ok || g.Degrees() != 0.05 {
		t.Errorf("medium should map to 0.05 degrees, got %v %v", g, ok)
	}
}
