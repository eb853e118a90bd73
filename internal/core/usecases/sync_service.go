package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/ports"
)

// maxSyncPages stops a misbehaving upstream that always reports more pages.
const maxSyncPages = 1000

// Importer stores a batch of observations.
type Importer interface {
	Import(ctx context.Context, obs []domain.Observation) (int, error)
}

// SyncService copies a user's observations from the upstream backend into
// the local store.
type SyncService struct {
	upstream ports.ObservationSource
	importer Importer
}

// NewSyncService creates a new SyncService.
func NewSyncService(upstream ports.ObservationSource, importer Importer) *SyncService {
	return &SyncService{upstream: upstream, importer: importer}
}

// SyncUser pages through every requested source of a user and imports the
// records. A failing source is logged and skipped; the error returned is the
// last one seen, alongside the number of records stored.
func (s *SyncService) SyncUser(ctx context.Context, userID string, sources []domain.Source) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user id must not be empty")
	}
	if len(sources) == 0 {
		sources = domain.Sources
	}

	stored := 0
	var lastErr error
	for _, src := range sources {
		obs, err := s.fetchAll(ctx, userID, src)
		if err != nil {
			slog.WarnContext(ctx, "upstream fetch failed", "user_id", userID, "source", src, "error", err)
			lastErr = err
			if len(obs) == 0 {
				continue
			}
		}
		n, err := s.importer.Import(ctx, obs)
		stored += n
		if err != nil {
			return stored, fmt.Errorf("import %s/%s: %w", userID, src, err)
		}
		slog.InfoContext(ctx, "source synced", "user_id", userID, "source", src, "fetched", len(obs), "stored", n)
	}
	return stored, lastErr
}

// fetchAll returns the pages fetched before any error.
func (s *SyncService) fetchAll(ctx context.Context, userID string, src domain.Source) ([]domain.Observation, error) {
	var all []domain.Observation
	for page := 1; page <= maxSyncPages; page++ {
		obs, more, err := s.upstream.FetchUserObservations(ctx, userID, src, page)
		if err != nil {
			return all, err
		}
		all = append(all, obs...)
		if !more || len(obs) == 0 {
			return all, nil
		}
	}
	return all, fmt.Errorf("%s/%s: more than %d pages", userID, src, maxSyncPages)
}
