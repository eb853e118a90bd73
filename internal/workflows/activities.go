package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/geocode"
)

// LevelSetSource returns the aggregated grid levels of a user.
type LevelSetSource interface {
	LevelSet(ctx context.Context, userID string, src domain.Source) (domain.GridLevelSet, error)
}

// PlaceResolver resolves a coordinate to a place name, falling back on failure.
type PlaceResolver interface {
	Resolve(ctx context.Context, lat, lon float64) string
}

// WarmActivities holds the activity implementations for the place-name warm-up workflow.
type WarmActivities struct {
	Levels   LevelSetSource
	Resolver PlaceResolver
}

// CellAnchors returns the location of the first member of every cell at
// the given size, up to limit anchors.
func (a *WarmActivities) CellAnchors(ctx context.Context, userID string, src domain.Source, size domain.GridSize, limit int) ([]domain.GeoPoint, error) {
	set, err := a.Levels.LevelSet(ctx, userID, src)
	if err != nil {
		return nil, fmt.Errorf("level set for %s: %w", userID, err)
	}

	cells := set[size]
	anchors := make([]domain.GeoPoint, 0, len(cells))
	for _, c := range cells {
		if limit > 0 && len(anchors) >= limit {
			break
		}
		if len(c.Members) == 0 {
			continue
		}
		lat, lon, ok := c.Members[0].Coordinates()
		if !ok {
			continue
		}
		anchors = append(anchors, domain.GeoPoint{Lat: lat, Lon: lon})
	}
	return anchors, nil
}

// WarmPlaceName resolves one coordinate so the result lands in the shared
// cache. It reports whether a real name (not the fallback) was obtained.
func (a *WarmActivities) WarmPlaceName(ctx context.Context, lat, lon float64) (bool, error) {
	name := a.Resolver.Resolve(ctx, lat, lon)
	if name == geocode.Fallback(lat, lon) {
		slog.WarnContext(ctx, "warm place name fell back", "lat", lat, "lon", lon)
		return false, nil
	}
	return true, nil
}
