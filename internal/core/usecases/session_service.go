package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/geocode"
	"github.com/fobi-id/obsmap/internal/core/lod"
	"github.com/fobi-id/obsmap/internal/core/ports"
	"github.com/fobi-id/obsmap/internal/pkg/metrics"
)

// ObservationLister is the part of ObservationService a session needs.
type ObservationLister interface {
	ListByUser(ctx context.Context, userID string, src domain.Source) ([]domain.Observation, error)
}

// MapSession is one page view of a user's map. It owns its place-name
// cache; the cache is discarded together with the session.
type MapSession struct {
	ID        string
	UserID    string
	Source    domain.Source
	CreatedAt time.Time

	resolver *geocode.Resolver

	mu       sync.Mutex
	points   []domain.Observation
	levels   domain.GridLevelSet
	zoom     float64
	level    domain.DetailLevel
	viewport *domain.Bounds
}

// SessionInfo is the externally visible state of a MapSession.
type SessionInfo struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Source       domain.Source      `json:"source,omitempty"`
	Zoom         float64            `json:"zoom"`
	Level        domain.DetailLevel `json:"level"`
	Observations int                `json:"observations"`
	CachedPlaces int                `json:"cached_places"`
	CreatedAt    time.Time          `json:"created_at"`
}

func (m *MapSession) info() *SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &SessionInfo{
		ID:           m.ID,
		UserID:       m.UserID,
		Source:       m.Source,
		Zoom:         m.zoom,
		Level:        m.level,
		Observations: len(m.points),
		CachedPlaces: m.resolver.Cache().Len(),
		CreatedAt:    m.CreatedAt,
	}
}

func (m *MapSession) view() *domain.MapView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return BuildMapView(m.levels, m.points, m.zoom, m.level, m.viewport)
}

// SessionService keeps map sessions in a bounded, idle-expiring registry.
type SessionService struct {
	observations ObservationLister
	geocoder     ports.Geocoder
	shared       ports.CacheService
	sharedTTL    time.Duration

	// mu keeps the get-then-touch in lookup atomic with respect to Close.
	mu       sync.Mutex
	sessions *expirable.LRU[string, *MapSession]
}

// SessionOptions configures a SessionService.
type SessionOptions struct {
	MaxSessions int
	IdleTTL     time.Duration
	// SharedTTL is how long resolved place names live in the shared cache.
	SharedTTL time.Duration
}

// NewSessionService creates a SessionService. shared may be nil.
func NewSessionService(observations ObservationLister, geocoder ports.Geocoder, shared ports.CacheService, opts SessionOptions) *SessionService {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	onEvict := func(_ string, _ *MapSession) {
		metrics.ActiveSessions.Dec()
	}
	return &SessionService{
		observations: observations,
		geocoder:     geocoder,
		shared:       shared,
		sharedTTL:    opts.SharedTTL,
		sessions:     expirable.NewLRU[string, *MapSession](opts.MaxSessions, onEvict, opts.IdleTTL),
	}
}

// Create opens a session over a user's observations. The initial view is
// the coarsest level.
func (s *SessionService) Create(ctx context.Context, userID string, src domain.Source) (*SessionInfo, error) {
	points, err := s.observations.ListByUser(ctx, userID, src)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}

	m := &MapSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    src,
		CreatedAt: time.Now().UTC(),
		resolver:  geocode.NewResolver(geocode.NewLocationCache(), s.geocoder, s.shared, s.sharedTTL),
		points:    points,
		levels:    BuildLevelSet(points, src),
		zoom:      lod.ExtraLargeMaxZoom,
		level:     domain.DetailExtraLarge,
	}
	s.sessions.Add(m.ID, m)
	metrics.ActiveSessions.Inc()
	return m.info(), nil
}

// lookup fetches a session and refreshes its idle deadline.
func (s *SessionService) lookup(id string) (*MapSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.sessions.Add(id, m)
	return m, nil
}

// Get returns the state of a session.
func (s *SessionService) Get(id string) (*SessionInfo, error) {
	m, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.info(), nil
}

// Owner returns the user a session belongs to.
func (s *SessionService) Owner(id string) (string, error) {
	m, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	return m.UserID, nil
}

// ApplyZoom selects the detail level for a settled zoom and returns the
// view to draw. A nil viewport keeps the previous one.
func (s *SessionService) ApplyZoom(ctx context.Context, id string, zoom float64, viewport *domain.Bounds) (*domain.MapView, error) {
	m, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	level := lod.SelectLevel(zoom)
	metrics.DetailLevelSelections.WithLabelValues(string(level)).Inc()

	m.mu.Lock()
	m.zoom = zoom
	m.level = level
	if viewport != nil {
		v := *viewport
		m.viewport = &v
	}
	m.mu.Unlock()

	return m.view(), nil
}

// View returns the current view of a session without changing it.
func (s *SessionService) View(ctx context.Context, id string) (*domain.MapView, error) {
	m, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.view(), nil
}

// Resolve returns the place name for a coordinate through the session's
// own cache.
func (s *SessionService) Resolve(ctx context.Context, id string, lat, lon float64) (string, error) {
	m, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	return m.resolver.Resolve(ctx, lat, lon), nil
}

// Reload re-reads the session owner's observations and rebuilds the level
// set. Resolved place names are kept.
func (s *SessionService) Reload(ctx context.Context, id string) (*domain.MapView, error) {
	m, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	points, err := s.observations.ListByUser(ctx, m.UserID, m.Source)
	if err != nil {
		return nil, fmt.Errorf("reload observations: %w", err)
	}
	levels := BuildLevelSet(points, m.Source)

	m.mu.Lock()
	m.points = points
	m.levels = levels
	m.mu.Unlock()

	return m.view(), nil
}

// Close discards a session and its place-name cache.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Remove ignores the idle deadline; an expired entry may still be
	// waiting for the purge.
	if _, ok := s.sessions.Peek(id); !ok {
		s.sessions.Remove(id)
		return domain.ErrSessionNotFound
	}
	s.sessions.Remove(id)
	return nil
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	return s.sessions.Len()
}
