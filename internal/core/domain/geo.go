package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point is finite and inside the WGS 84 ranges.
func (p GeoPoint) Valid() bool {
	return ValidLatitude(p.Lat) && ValidLongitude(p.Lon)
}

// Bounds represents a geographic bounding box, typically the visible map viewport.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Empty reports whether the box covers no area.
func (b Bounds) Empty() bool {
	return b.MaxLat <= b.MinLat || b.MaxLon <= b.MinLon
}

func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

func ValidLongitude(lon float64) bool {
	return !math.IsNaN(lon) && lon >= -180 && lon <= 180
}
