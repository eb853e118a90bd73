package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fobi-id/obsmap/internal/core/geocode"
	"github.com/fobi-id/obsmap/internal/core/usecases"
)

// Pinger is a backing service that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Observations *usecases.ObservationService
	Sessions     *usecases.SessionService
	// Places resolves ad-hoc coordinates outside any map session.
	Places *geocode.Resolver
	NATS   *nats.Conn
	DB     Pinger
	Cache  Pinger
	// ZoomDebounce is the quiet period before a WebSocket zoom gesture settles.
	ZoomDebounce time.Duration
}
