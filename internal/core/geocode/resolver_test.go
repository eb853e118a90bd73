package geocode_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/geocode"
)

// --- Mocks ---

type mockGeocoder struct {
	calls     atomic.Int32
	reverseFn func(ctx context.Context, lat, lon float64) (*domain.Place, error)
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (*domain.Place, error) {
	m.calls.Add(1)
	if m.reverseFn != nil {
		return m.reverseFn(ctx, lat, lon)
	}
	return &domain.Place{Address: domain.Address{City: "Bogor", State: "Jawa Barat", Country: "Indonesia"}}, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Tests ---

func TestKey(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{1, 2, "1,2"},
		{-6.2, 106.816666, "-6.2,106.816666"},
		{0.5, -0.25, "0.5,-0.25"},
	}
	for _, tt := range tests {
		if got := geocode.Key(tt.lat, tt.lon); got != tt.want {
			t.Errorf("Key(%v,%v) = %q, want %q", tt.lat, tt.lon, got, tt.want)
		}
	}
}

func TestResolve_SequentialCallsHitCache(t *testing.T) {
	g := &mockGeocoder{}
	cache := geocode.NewLocationCache()
	r := geocode.NewResolver(cache, g, nil, 0)

	first := r.Resolve(context.Background(), 1, 2)
	second := r.Resolve(context.Background(), 1, 2)

	if first != "Bogor, Jawa Barat, Indonesia" {
		t.Errorf("unexpected name %q", first)
	}
	if first != second {
		t.Errorf("expected identical names, got %q and %q", first, second)
	}
	if n := g.calls.Load(); n != 1 {
		t.Errorf("expected 1 lookup, got %d", n)
	}
	if name, ok := cache.Get("1,2"); !ok || name != first {
		t.Errorf("expected cache entry for 1,2, got %q %v", name, ok)
	}
}

func TestResolve_FailureIsNotCached(t *testing.T) {
	fail := true
	g := &mockGeocoder{
		reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Place, error) {
			if fail {
				return nil, errors.New("upstream 503")
			}
			return &domain.Place{DisplayName: "Kebun Raya Bogor"}, nil
		},
	}
	cache := geocode.NewLocationCache()
	r := geocode.NewResolver(cache, g, nil, 0)

	got := r.Resolve(context.Background(), -6.5976, 106.7996)
	if got != "-6.597600, 106.799600" {
		t.Errorf("expected coordinate fallback, got %q", got)
	}
	if cache.Len() != 0 {
		t.Fatalf("failure must not be cached, cache has %d entries", cache.Len())
	}

	fail = false
	if got := r.Resolve(context.Background(), -6.5976, 106.7996); got != "Kebun Raya Bogor" {
		t.Errorf("expected retry to succeed, got %q", got)
	}
	if n := g.calls.Load(); n != 2 {
		t.Errorf("expected 2 lookups, got %d", n)
	}
}

func TestResolve_EmptyPlaceFallsBack(t *testing.T) {
	g := &mockGeocoder{
		reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Place, error) {
			return &domain.Place{}, nil
		},
	}
	r := geocode.NewResolver(geocode.NewLocationCache(), g, nil, 0)
	if got := r.Resolve(context.Background(), 1, 2); got != "1.000000, 2.000000" {
		t.Errorf("unexpected fallback %q", got)
	}
}

func TestResolve_InvalidCoordinatesSkipLookup(t *testing.T) {
	g := &mockGeocoder{}
	r := geocode.NewResolver(geocode.NewLocationCache(), g, nil, 0)

	if got := r.Resolve(context.Background(), math.NaN(), 2); got != geocode.UnknownLocation {
		t.Errorf("expected %q, got %q", geocode.UnknownLocation, got)
	}
	if got := r.Resolve(context.Background(), 95, 2); got != "95.000000, 2.000000" {
		t.Errorf("unexpected fallback %q", got)
	}
	if n := g.calls.Load(); n != 0 {
		t.Errorf("expected no lookups, got %d", n)
	}
}

func TestResolve_NilGeocoder(t *testing.T) {
	r := geocode.NewResolver(nil, nil, nil, 0)
	if got := r.Resolve(context.Background(), 1, 2); got != "1.000000, 2.000000" {
		t.Errorf("unexpected fallback %q", got)
	}
}

func TestResolve_SharedCache(t *testing.T) {
	shared := newMemCache()
	g := &mockGeocoder{}

	a := geocode.NewResolver(geocode.NewLocationCache(), g, shared, time.Hour)
	b := geocode.NewResolver(geocode.NewLocationCache(), g, shared, time.Hour)

	nameA := a.Resolve(context.Background(), 1, 2)
	nameB := b.Resolve(context.Background(), 1, 2)

	if nameA != nameB {
		t.Errorf("expected shared name, got %q and %q", nameA, nameB)
	}
	if n := g.calls.Load(); n != 1 {
		t.Errorf("expected 1 lookup across sessions, got %d", n)
	}
	if b.Cache().Len() != 1 {
		t.Errorf("expected shared hit to populate session cache")
	}
}

func TestResolve_ConcurrentCallsAreDeduplicated(t *testing.T) {
	release := make(chan struct{})
	g := &mockGeocoder{
		reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Place, error) {
			<-release
			return &domain.Place{DisplayName: "Taman Nasional Ujung Kulon"}, nil
		},
	}
	r := geocode.NewResolver(geocode.NewLocationCache(), g, nil, 0)

	var wg sync.WaitGroup
	names := make([]string, 8)
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i] = r.Resolve(context.Background(), -6.75, 105.33)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, n := range names {
		if n != "Taman Nasional Ujung Kulon" {
			t.Errorf("unexpected name %q", n)
		}
	}
	// Dedup is best effort: a goroutine scheduled after the first lookup
	// finished may hit the cache instead, never a second lookup in flight.
	if n := g.calls.Load(); n < 1 || n > 8 {
		t.Errorf("unexpected lookup count %d", n)
	}
}

func TestLookup_ReportsFallback(t *testing.T) {
	fail := true
	g := &mockGeocoder{
		reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Place, error) {
			if fail {
				return nil, domain.ErrGeocoderUnavailable
			}
			return &domain.Place{DisplayName: "Kebun Raya Bogor"}, nil
		},
	}
	r := geocode.NewResolver(geocode.NewLocationCache(), g, nil, 0)

	name, ok := r.Lookup(context.Background(), -6.5976, 106.7996)
	if ok || name != "-6.597600, 106.799600" {
		t.Errorf("expected fallback, got (%q, %v)", name, ok)
	}

	fail = false
	if name, ok := r.Lookup(context.Background(), -6.5976, 106.7996); !ok || name != "Kebun Raya Bogor" {
		t.Errorf("expected resolved name, got (%q, %v)", name, ok)
	}
	if name, ok := r.Lookup(context.Background(), -6.5976, 106.7996); !ok || name != "Kebun Raya Bogor" {
		t.Errorf("expected cached name, got (%q, %v)", name, ok)
	}
	if _, ok := r.Lookup(context.Background(), 91, 0); ok {
		t.Error("out of range coordinates must report a fallback")
	}
}

func TestResolve_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	release := make(chan struct{})
	g := &mockGeocoder{
		reverseFn: func(ctx context.Context, lat, lon float64) (*domain.Place, error) {
			select {
			case <-release:
				return &domain.Place{DisplayName: "Candi Prambanan"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	cache := geocode.NewLocationCache()
	r := geocode.NewResolver(cache, g, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan string, 1)
	go func() { first <- r.Resolve(ctx, -7.752, 110.491) }()

	deadline := time.Now().Add(time.Second)
	for g.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	second := make(chan string, 1)
	go func() { second <- r.Resolve(context.Background(), -7.752, 110.491) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if got := <-first; got != "-7.752000, 110.491000" {
		t.Errorf("cancelled caller: expected fallback, got %q", got)
	}

	close(release)
	if got := <-second; got != "Candi Prambanan" {
		t.Errorf("waiting caller: expected resolved name, got %q", got)
	}
	if n := g.calls.Load(); n != 1 {
		t.Errorf("expected 1 lookup, got %d", n)
	}
	if cache.Len() != 1 {
		t.Errorf("expected the shared result to be cached, got %d entries", cache.Len())
	}
}
