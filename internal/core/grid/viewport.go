package grid

import (
	"github.com/paulmach/orb"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// Bound converts cell bounds to an orb.Bound (X = lon, Y = lat).
func Bound(b domain.CellBounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.SouthWest.Lon, b.SouthWest.Lat},
		Max: orb.Point{b.NorthEast.Lon, b.NorthEast.Lat},
	}
}

// ViewportBound converts a viewport box to an orb.Bound.
func ViewportBound(b domain.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// InViewport keeps the cells that intersect the viewport. A nil viewport
// keeps everything.
func InViewport(cells []domain.GridCell, viewport *domain.Bounds) []domain.GridCell {
	if viewport == nil {
		return cells
	}
	vb := ViewportBound(*viewport)
	out := make([]domain.GridCell, 0, len(cells))
	for _, c := range cells {
		if Bound(c.Bounds).Intersects(vb) {
			out = append(out, c)
		}
	}
	return out
}

// MarkersInViewport keeps the located observations inside the viewport.
// Observations without coordinates are always dropped.
func MarkersInViewport(points []domain.Observation, viewport *domain.Bounds) []domain.Observation {
	out := make([]domain.Observation, 0, len(points))
	var vb orb.Bound
	if viewport != nil {
		vb = ViewportBound(*viewport)
	}
	for _, p := range points {
		lat, lon, ok := p.Coordinates()
		if !ok {
			continue
		}
		if viewport != nil && !vb.Contains(orb.Point{lon, lat}) {
			continue
		}
		out = append(out, p)
	}
	return out
}
