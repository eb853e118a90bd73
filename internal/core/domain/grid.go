package domain

import "fmt"

// GridSize names one of the four fixed cell granularities.
type GridSize string

const (
	GridSmall      GridSize = "small"
	GridMedium     GridSize = "medium"
	GridLarge      GridSize = "large"
	GridExtraLarge GridSize = "extraLarge"
)

// GridSizes lists every grid size from finest to coarsest.
var GridSizes = []GridSize{GridSmall, GridMedium, GridLarge, GridExtraLarge}

var gridDegrees = map[GridSize]float64{
	GridSmall:      0.02,
	GridMedium:     0.05,
	GridLarge:      0.2,
	GridExtraLarge: 0.5,
}

// Degrees returns the cell edge length, or 0 for an unknown size.
func (g GridSize) Degrees() float64 {
	return gridDegrees[g]
}

func ParseGridSize(s string) (GridSize, error) {
	g := GridSize(s)
	if _, ok := gridDegrees[g]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidGridSize, s)
	}
	return g, nil
}

// CellBounds is the axis-aligned rectangle of a grid cell.
type CellBounds struct {
	SouthWest GeoPoint `json:"south_west"`
	NorthEast GeoPoint `json:"north_east"`
}

// GridCell is a non-empty bucket of observations.
type GridCell struct {
	Bounds  CellBounds    `json:"bounds"`
	Count   int           `json:"count"`
	Members []Observation `json:"members"`
}

// Center returns the midpoint of the cell.
func (c GridCell) Center() GeoPoint {
	return GeoPoint{
		Lat: (c.Bounds.SouthWest.Lat + c.Bounds.NorthEast.Lat) / 2,
		Lon: (c.Bounds.SouthWest.Lon + c.Bounds.NorthEast.Lon) / 2,
	}
}

// GridLevelSet maps each grid size to its cells.
type GridLevelSet map[GridSize][]GridCell

// CellSummary describes a cell for popups.
type CellSummary struct {
	Count     int            `json:"count"`
	BySource  map[Source]int `json:"by_source"`
	Species   []string       `json:"species"`
	FirstSeen *GeoPoint      `json:"first_seen,omitempty"`
}
