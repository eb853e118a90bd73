// Package lod maps a map zoom to the detail level used for rendering.
package lod

import (
	"math"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// Zoom thresholds; each is the inclusive upper bound of the coarser level.
const (
	ExtraLargeMaxZoom = 6.0
	LargeMaxZoom      = 8.0
	MediumMaxZoom     = 10.0
	SmallMaxZoom      = 12.0
)

// SelectLevel returns the detail level for a zoom. It is total: NaN is
// treated as fully zoomed out.
func SelectLevel(zoom float64) domain.DetailLevel {
	switch {
	case math.IsNaN(zoom):
		return domain.DetailExtraLarge
	case zoom > SmallMaxZoom:
		return domain.DetailMarkers
	case zoom > MediumMaxZoom:
		return domain.DetailSmall
	case zoom > LargeMaxZoom:
		return domain.DetailMedium
	case zoom > ExtraLargeMaxZoom:
		return domain.DetailLarge
	default:
		return domain.DetailExtraLarge
	}
}

// ShowsMarkers reports whether individual observations are drawn instead of cells.
func ShowsMarkers(level domain.DetailLevel) bool {
	return level == domain.DetailMarkers
}
