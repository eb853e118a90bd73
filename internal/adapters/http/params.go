package http

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// parseBBox parses "west,south,east,north" in degrees. An empty string
// yields nil.
func parseBBox(s string) (*domain.Bounds, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: bbox must be west,south,east,north", domain.ErrInvalidCoordinate)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bbox component %q", domain.ErrInvalidCoordinate, p)
		}
		v[i] = f
	}
	return boundsFromSlice(v[:])
}

// boundsFromSlice validates [west, south, east, north].
func boundsFromSlice(v []float64) (*domain.Bounds, error) {
	if len(v) != 4 {
		return nil, fmt.Errorf("%w: bbox needs 4 numbers", domain.ErrInvalidCoordinate)
	}
	b := &domain.Bounds{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if !domain.ValidLatitude(b.MinLat) || !domain.ValidLatitude(b.MaxLat) ||
		!domain.ValidLongitude(b.MinLon) || !domain.ValidLongitude(b.MaxLon) {
		return nil, fmt.Errorf("%w: bbox out of range", domain.ErrInvalidCoordinate)
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return nil, fmt.Errorf("%w: bbox corners swapped", domain.ErrInvalidCoordinate)
	}
	return b, nil
}

// parseOptionalSource parses the source query value; empty means all sources.
func parseOptionalSource(s string) (domain.Source, error) {
	if s == "" || s == "all" {
		return "", nil
	}
	return domain.ParseSource(s)
}

// queryFloat parses a required float query parameter.
func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	return v, nil
}

// queryLatLon parses and range-checks lat and lon query parameters.
func queryLatLon(c *fiber.Ctx) (lat, lon float64, err error) {
	if lat, err = queryFloat(c, "lat"); err != nil {
		return 0, 0, err
	}
	if lon, err = queryFloat(c, "lon"); err != nil {
		return 0, 0, err
	}
	if !domain.ValidLatitude(lat) || !domain.ValidLongitude(lon) {
		return 0, 0, fmt.Errorf("lat must be in [-90, 90] and lon in [-180, 180]")
	}
	return lat, lon, nil
}

// validZoom rejects values a map widget can never report.
func validZoom(z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) || z < 0 || z > 30 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidZoom, z)
	}
	return nil
}
