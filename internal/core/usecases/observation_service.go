package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/grid"
	"github.com/fobi-id/obsmap/internal/core/lod"
	"github.com/fobi-id/obsmap/internal/core/ports"
	"github.com/fobi-id/obsmap/internal/pkg/metrics"
	"github.com/fobi-id/obsmap/internal/pkg/telemetry"
)

const (
	observationCacheTTL = 300 // 5 minutes
	importBatchSize     = 500
)

// ObservationService handles observation listing, aggregation and import.
type ObservationService struct {
	repo      ports.ObservationRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
}

// NewObservationService creates a new ObservationService. cache and
// publisher may be nil.
func NewObservationService(repo ports.ObservationRepository, cache ports.CacheService, publisher ports.EventPublisher) *ObservationService {
	return &ObservationService{repo: repo, cache: cache, publisher: publisher}
}

func listKey(userID string, src domain.Source) string {
	return "obs:user:" + userID + ":" + sourceLabel(src)
}

func levelsKey(userID string, src domain.Source) string {
	return "grid:user:" + userID + ":" + sourceLabel(src)
}

func sourceLabel(src domain.Source) string {
	if src == "" {
		return "all"
	}
	return string(src)
}

// ListByUser returns a user's observations, optionally restricted to one source.
func (s *ObservationService) ListByUser(ctx context.Context, userID string, src domain.Source) ([]domain.Observation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}

	cacheKey := listKey(userID, src)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var obs []domain.Observation
			if err := json.Unmarshal(data, &obs); err == nil {
				metrics.CacheHits.WithLabelValues("observations").Inc()
				return obs, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("observations").Inc()
	}

	obs, err := s.repo.List(ctx, ports.ObservationFilter{UserID: userID, Source: src})
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(obs); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, observationCacheTTL)
		}
	}
	return obs, nil
}

// LevelSet returns the four-size aggregation of a user's observations.
func (s *ObservationService) LevelSet(ctx context.Context, userID string, src domain.Source) (domain.GridLevelSet, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ObservationService.LevelSet",
		trace.WithAttributes(attribute.String("user_id", userID), attribute.String("source", sourceLabel(src))))
	defer span.End()

	cacheKey := levelsKey(userID, src)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var set domain.GridLevelSet
			if err := json.Unmarshal(data, &set); err == nil {
				metrics.CacheHits.WithLabelValues("grid").Inc()
				return set, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("grid").Inc()
	}

	obs, err := s.ListByUser(ctx, userID, src)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	set := BuildLevelSet(obs, src)
	span.SetAttributes(attribute.Int("observations", len(obs)))

	if s.cache != nil {
		if data, err := json.Marshal(set); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, observationCacheTTL)
		}
	}
	return set, nil
}

// Grid returns the cells of one size, filtered to the viewport when given.
func (s *ObservationService) Grid(ctx context.Context, userID string, src domain.Source, size domain.GridSize, viewport *domain.Bounds) ([]domain.GridCell, error) {
	set, err := s.LevelSet(ctx, userID, src)
	if err != nil {
		return nil, err
	}
	return grid.InViewport(set[size], viewport), nil
}

// MapView returns what to draw for a user's observations at a zoom.
func (s *ObservationService) MapView(ctx context.Context, userID string, src domain.Source, zoom float64, viewport *domain.Bounds) (*domain.MapView, error) {
	obs, err := s.ListByUser(ctx, userID, src)
	if err != nil {
		return nil, err
	}
	set, err := s.LevelSet(ctx, userID, src)
	if err != nil {
		return nil, err
	}
	level := lod.SelectLevel(zoom)
	metrics.DetailLevelSelections.WithLabelValues(string(level)).Inc()
	return BuildMapView(set, obs, zoom, level, viewport), nil
}

// Counts returns stored observation counts per source.
func (s *ObservationService) Counts(ctx context.Context, userID string) (map[domain.Source]int, error) {
	return s.repo.CountByUser(ctx, userID)
}

// Import validates and stores observations, then invalidates the caches
// of every affected user and announces the change. Invalid records are
// skipped and logged. It returns the number stored.
func (s *ObservationService) Import(ctx context.Context, obs []domain.Observation) (int, error) {
	valid := make([]domain.Observation, 0, len(obs))
	perUser := make(map[string]int)
	var users []string
	for _, o := range obs {
		if err := o.Validate(); err != nil {
			slog.WarnContext(ctx, "skipping invalid observation", "id", o.ID, "error", err)
			continue
		}
		valid = append(valid, o)
		if _, seen := perUser[o.UserID]; !seen {
			users = append(users, o.UserID)
		}
		perUser[o.UserID]++
	}

	for start := 0; start < len(valid); start += importBatchSize {
		end := min(start+importBatchSize, len(valid))
		if err := s.repo.UpsertBatch(ctx, valid[start:end]); err != nil {
			return start, fmt.Errorf("upsert observations: %w", err)
		}
		for _, o := range valid[start:end] {
			metrics.ObservationsImported.WithLabelValues(string(o.Source)).Inc()
		}
	}

	now := time.Now().UTC()
	for _, u := range users {
		s.Invalidate(ctx, u)
		if s.publisher == nil {
			continue
		}
		ev := &domain.ObservationsUpdated{UserID: u, Count: perUser[u], At: now}
		if err := s.publisher.PublishObservationsUpdated(ctx, ev); err != nil {
			slog.WarnContext(ctx, "publish observations.updated failed", "user_id", u, "error", err)
		}
	}
	return len(valid), nil
}

// Invalidate drops every cached listing and level set of a user.
func (s *ObservationService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	srcs := append([]domain.Source{""}, domain.Sources...)
	for _, src := range srcs {
		_ = s.cache.Delete(ctx, listKey(userID, src))
		_ = s.cache.Delete(ctx, levelsKey(userID, src))
	}
}

// BuildLevelSet aggregates points at every size and records the time taken.
func BuildLevelSet(points []domain.Observation, src domain.Source) domain.GridLevelSet {
	start := time.Now()
	set := grid.BuildLevelSet(points)
	metrics.AggregationDuration.WithLabelValues(sourceLabel(src)).Observe(time.Since(start).Seconds())
	return set
}

// BuildMapView picks the cells or markers for a level, restricted to the
// viewport when given.
func BuildMapView(set domain.GridLevelSet, points []domain.Observation, zoom float64, level domain.DetailLevel, viewport *domain.Bounds) *domain.MapView {
	view := &domain.MapView{Level: level, Zoom: zoom}
	if lod.ShowsMarkers(level) {
		view.Markers = grid.MarkersInViewport(points, viewport)
		view.Total = len(view.Markers)
		return view
	}
	size, _ := level.GridSize()
	view.Cells = grid.InViewport(set[size], viewport)
	for _, c := range view.Cells {
		view.Total += c.Count
	}
	return view
}
