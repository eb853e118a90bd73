package usecases_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/ports"
)

// --- Mock ObservationRepository ---

type mockObservationRepo struct {
	upsertBatchFn func(ctx context.Context, obs []domain.Observation) error
	listFn        func(ctx context.Context, filter ports.ObservationFilter) ([]domain.Observation, error)
	countFn       func(ctx context.Context, userID string) (map[domain.Source]int, error)
	listCalls     atomic.Int32
}

func (m *mockObservationRepo) UpsertBatch(ctx context.Context, obs []domain.Observation) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, obs)
	}
	return nil
}

func (m *mockObservationRepo) GetByID(ctx context.Context, id string) (*domain.Observation, error) {
	return nil, domain.ErrNotFound
}

func (m *mockObservationRepo) List(ctx context.Context, filter ports.ObservationFilter) ([]domain.Observation, error) {
	m.listCalls.Add(1)
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockObservationRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockObservationRepo) CountByUser(ctx context.Context, userID string) (map[domain.Source]int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.ObservationsUpdated
}

func (m *mockPublisher) PublishObservationsUpdated(ctx context.Context, event *domain.ObservationsUpdated) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	reverseFn func(ctx context.Context, lat, lon float64) (*domain.Place, error)
	calls     atomic.Int32
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (*domain.Place, error) {
	m.calls.Add(1)
	if m.reverseFn != nil {
		return m.reverseFn(ctx, lat, lon)
	}
	return &domain.Place{DisplayName: "Somewhere"}, nil
}

// --- Fixtures ---

func ptr(v float64) *float64 { return &v }

func obsAt(id string, lat, lon float64) domain.Observation {
	return domain.Observation{
		ID:        "fobi_" + id,
		Source:    domain.SourceFOBI,
		UserID:    "42",
		Latitude:  ptr(lat),
		Longitude: ptr(lon),
		Single:    &domain.SingleSpecies{ScientificName: "Passer montanus"},
	}
}
