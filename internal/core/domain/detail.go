package domain

// DetailLevel is the map rendering granularity picked from the zoom.
type DetailLevel string

const (
	DetailExtraLarge DetailLevel = "extraLarge"
	DetailLarge      DetailLevel = "large"
	DetailMedium     DetailLevel = "medium"
	DetailSmall      DetailLevel = "small"
	DetailMarkers    DetailLevel = "markers"
)

// GridSize returns the grid backing this level; ok is false for markers.
func (d DetailLevel) GridSize() (GridSize, bool) {
	switch d {
	case DetailExtraLarge:
		return GridExtraLarge, true
	case DetailLarge:
		return GridLarge, true
	case DetailMedium:
		return GridMedium, true
	case DetailSmall:
		return GridSmall, true
	}
	return "", false
}

// MapView is what the rendering layer draws for one settled zoom.
type MapView struct {
	Level   DetailLevel   `json:"level"`
	Zoom    float64       `json:"zoom"`
	Cells   []GridCell    `json:"cells,omitempty"`
	Markers []Observation `json:"markers,omitempty"`
	Total   int           `json:"total"`
}
