package ports

import (
	"context"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishObservationsUpdated(ctx context.Context, event *domain.ObservationsUpdated) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeObservationsUpdated(ctx context.Context, handler func(ctx context.Context, event *domain.ObservationsUpdated) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Geocoder resolves a coordinate pair to a place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*domain.Place, error)
}

// ObservationSource fetches observations from the upstream REST backend.
type ObservationSource interface {
	FetchUserObservations(ctx context.Context, userID string, src domain.Source, page int) ([]domain.Observation, bool, error)
}
