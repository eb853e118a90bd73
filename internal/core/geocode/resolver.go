package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/ports"
	"github.com/fobi-id/obsmap/internal/pkg/metrics"
	"github.com/fobi-id/obsmap/internal/pkg/telemetry"
)

// UnknownLocation is returned for coordinates that cannot be looked up.
const UnknownLocation = "Unknown location"

const (
	sharedKeyPrefix = "geocode:"
	lookupTimeout   = 15 * time.Second
)

// Resolver memoizes reverse-geocoding results. Lookups go through the
// owned LocationCache, then the optional shared cache, then the Geocoder.
// Failures return a fallback name and are never cached.
type Resolver struct {
	cache     *LocationCache
	geocoder  ports.Geocoder
	shared    ports.CacheService
	sharedTTL time.Duration
	group     singleflight.Group
}

// NewResolver creates a Resolver. cache and shared may be nil.
func NewResolver(cache *LocationCache, geocoder ports.Geocoder, shared ports.CacheService, sharedTTL time.Duration) *Resolver {
	return &Resolver{cache: cache, geocoder: geocoder, shared: shared, sharedTTL: sharedTTL}
}

// Cache returns the owned cache, or nil.
func (r *Resolver) Cache() *LocationCache {
	return r.cache
}

// Resolve returns the place name for (lat, lon).
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) string {
	name, _ := r.Lookup(ctx, lat, lon)
	return name
}

// Lookup is Resolve that also reports whether the name came from a cache
// or the geocoder. It is false when the fallback name was returned.
func (r *Resolver) Lookup(ctx context.Context, lat, lon float64) (string, bool) {
	if !domain.ValidLatitude(lat) || !domain.ValidLongitude(lon) {
		return Fallback(lat, lon), false
	}

	key := Key(lat, lon)
	if r.cache != nil {
		if name, ok := r.cache.Get(key); ok {
			metrics.CacheHits.WithLabelValues("geocode_session").Inc()
			return name, true
		}
	}
	if r.shared != nil {
		if data, err := r.shared.Get(ctx, sharedKeyPrefix+key); err == nil && len(data) > 0 {
			metrics.CacheHits.WithLabelValues("geocode_shared").Inc()
			name := string(data)
			r.remember(ctx, key, name, false)
			return name, true
		}
	}
	metrics.CacheMisses.WithLabelValues("geocode").Inc()

	// The shared lookup outlives any single caller so that one cancelled
	// request does not hand the fallback to every waiter on the key.
	ch := r.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		name, err := r.lookup(lctx, lat, lon)
		if err != nil {
			return nil, err
		}
		r.remember(lctx, key, name, true)
		return name, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.GeocodeLookups.WithLabelValues("error").Inc()
			slog.WarnContext(ctx, "reverse geocode failed", "key", key, "error", res.Err)
			return Fallback(lat, lon), false
		}
		metrics.GeocodeLookups.WithLabelValues("ok").Inc()
		return res.Val.(string), true
	case <-ctx.Done():
		metrics.GeocodeLookups.WithLabelValues("canceled").Inc()
		return Fallback(lat, lon), false
	}
}

func (r *Resolver) lookup(ctx context.Context, lat, lon float64) (string, error) {
	if r.geocoder == nil {
		return "", domain.ErrGeocoderUnavailable
	}
	ctx, span := telemetry.Tracer().Start(ctx, "geocode.Reverse",
		trace.WithAttributes(attribute.Float64("lat", lat), attribute.Float64("lon", lon)))
	defer span.End()

	place, err := r.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverse geocode failed")
		return "", err
	}
	if place == nil {
		return "", domain.ErrNotFound
	}
	name := place.Name()
	if name == "" {
		return "", fmt.Errorf("empty place for %s: %w", Key(lat, lon), domain.ErrNotFound)
	}
	return name, nil
}

func (r *Resolver) remember(ctx context.Context, key, name string, share bool) {
	if r.cache != nil {
		r.cache.Put(key, name)
	}
	if share && r.shared != nil && r.sharedTTL > 0 {
		if err := r.shared.Set(ctx, sharedKeyPrefix+key, []byte(name), int(r.sharedTTL.Seconds())); err != nil {
			slog.DebugContext(ctx, "shared geocode cache write failed", "key", key, "error", err)
		}
	}
}

// Fallback renders raw coordinates, or UnknownLocation when they are not finite.
func Fallback(lat, lon float64) string {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return UnknownLocation
	}
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}
