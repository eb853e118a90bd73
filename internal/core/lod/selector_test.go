package lod_test

import (
	"math"
	"testing"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/lod"
)

func TestSelectLevel(t *testing.T) {
	tests := []struct {
		zoom float64
		want domain.DetailLevel
	}{
		{0, domain.DetailExtraLarge},
		{5.5, domain.DetailExtraLarge},
		{6, domain.DetailExtraLarge},
		{6.0001, domain.DetailLarge},
		{8, domain.DetailLarge},
		{8.5, domain.DetailMedium},
		{10, domain.DetailMedium},
		{10.0001, domain.DetailSmall},
		{11, domain.DetailSmall},
		{12, domain.DetailSmall},
		{12.0001, domain.DetailMarkers},
		{13, domain.DetailMarkers},
		{18, domain.DetailMarkers},
		{-3, domain.DetailExtraLarge},
		{math.Inf(1), domain.DetailMarkers},
		{math.Inf(-1), domain.DetailExtraLarge},
		{math.NaN(), domain.DetailExtraLarge},
	}
	for _, tt := range tests {
		if got := lod.SelectLevel(tt.zoom); got != tt.want {
			t.Errorf("SelectLevel(%v) = %s, want %s", tt.zoom, got, tt.want)
		}
	}
}

func TestSelectLevel_Deterministic(t *testing.T) {
	for z := -1.0; z <= 20; z += 0.25 {
		if lod.SelectLevel(z) != lod.SelectLevel(z) {
			t.Fatalf("SelectLevel(%v) not deterministic", z)
		}
	}
}

func TestSelectLevel_EveryLevelHasGridExceptMarkers(t *testing.T) {
	for z := 0.0; z <= 20; z += 0.5 {
		level := lod.SelectLevel(z)
		_, hasGrid := level.GridSize()
		if hasGrid == lod.ShowsMarkers(level) {
			t.Errorf("zoom %v: level %s grid=%v markers=%v", z, level, hasGrid, lod.ShowsMarkers(level))
		}
	}
}
