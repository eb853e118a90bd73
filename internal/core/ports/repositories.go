package ports

import (
	"context"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// ObservationFilter narrows an observation listing.
type ObservationFilter struct {
	UserID string
	Source domain.Source // empty means every source
	Bounds *domain.Bounds
}

// ObservationRepository persists observations.
type ObservationRepository interface {
	UpsertBatch(ctx context.Context, obs []domain.Observation) error
	GetByID(ctx context.Context, id string) (*domain.Observation, error)
	List(ctx context.Context, filter ObservationFilter) ([]domain.Observation, error)
	Delete(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID string) (map[domain.Source]int, error)
}
