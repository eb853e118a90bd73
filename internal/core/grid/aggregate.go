// Package grid buckets geotagged observations into fixed-size
// latitude/longitude cells for aggregated map rendering.
package grid

import (
	"math"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

type cellKey struct {
	lat, lon int64
}

// Aggregate buckets points into cells of size degrees. A point belongs to
// the cell whose south-west corner is (floor(lat/size)*size, floor(lon/size)*size).
// Points without coordinates are skipped. Cells are returned in the order
// their first member appears in points; members keep input order.
func Aggregate(points []domain.Observation, size float64) []domain.GridCell {
	cells := make([]domain.GridCell, 0)
	if !(size > 0) || math.IsInf(size, 0) {
		return cells
	}

	index := make(map[cellKey]int)
	for _, p := range points {
		lat, lon, ok := p.Coordinates()
		if !ok || !finite(lat) || !finite(lon) {
			continue
		}

		k := cellKey{
			lat: int64(math.Floor(lat / size)),
			lon: int64(math.Floor(lon / size)),
		}
		i, seen := index[k]
		if !seen {
			i = len(cells)
			index[k] = i
			cells = append(cells, domain.GridCell{Bounds: boundsOf(k, size)})
		}
		cells[i].Members = append(cells[i].Members, p)
		cells[i].Count++
	}
	return cells
}

// BuildLevelSet aggregates points once per named grid size.
func BuildLevelSet(points []domain.Observation) domain.GridLevelSet {
	set := make(domain.GridLevelSet, len(domain.GridSizes))
	for _, g := range domain.GridSizes {
		set[g] = Aggregate(points, g.Degrees())
	}
	return set
}

// KeyOf returns the south-west corner of the cell containing (lat, lon).
func KeyOf(lat, lon, size float64) domain.GeoPoint {
	return domain.GeoPoint{
		Lat: math.Floor(lat/size) * size,
		Lon: math.Floor(lon/size) * size,
	}
}

func boundsOf(k cellKey, size float64) domain.CellBounds {
	sw := domain.GeoPoint{Lat: float64(k.lat) * size, Lon: float64(k.lon) * size}
	return domain.CellBounds{
		SouthWest: sw,
		NorthEast: domain.GeoPoint{Lat: sw.Lat + size, Lon: sw.Lon + size},
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
