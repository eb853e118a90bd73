package grid

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// FeatureCollection renders cells as polygons carrying their count.
func FeatureCollection(cells []domain.GridCell) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		f := geojson.NewFeature(Bound(c.Bounds).ToPolygon())
		center := c.Center()
		f.Properties["count"] = c.Count
		f.Properties["center"] = []float64{center.Lon, center.Lat}
		fc.Append(f)
	}
	return fc
}

// MarkerCollection renders located observations as points.
func MarkerCollection(points []domain.Observation) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		lat, lon, ok := p.Coordinates()
		if !ok {
			continue
		}
		f := geojson.NewFeature(orb.Point{lon, lat})
		f.ID = p.ID
		f.Properties["id"] = p.ID
		f.Properties["source"] = string(p.Source)
		f.Properties["species"] = p.SpeciesNames()
		if !p.ObservedAt.IsZero() {
			f.Properties["observed_at"] = p.ObservedAt
		}
		fc.Append(f)
	}
	return fc
}
