package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/fobi-id/obsmap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 300 requests per minute per IP. Map clients fire
	// bursts of zoom and popup calls, so this is looser than a plain CRUD API.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics" || c.Path() == "/v1/health"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/lod", LODHandler(deps))
	v1.Get("/geocode/reverse", timeout.NewWithContext(ReverseGeocodeHandler(deps), requestTimeout))

	v1.Get("/users/:id/observations", timeout.NewWithContext(ListObservationsHandler(deps), requestTimeout))
	v1.Get("/users/:id/observations/counts", timeout.NewWithContext(ObservationCountsHandler(deps), requestTimeout))
	v1.Get("/users/:id/grid", timeout.NewWithContext(GridHandler(deps), requestTimeout))
	v1.Get("/users/:id/markers", timeout.NewWithContext(MarkersHandler(deps), requestTimeout))

	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), requestTimeout))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Get("/sessions/:id/view", SessionViewHandler(deps))
	v1.Post("/sessions/:id/zoom", ZoomSessionHandler(deps))
	v1.Get("/sessions/:id/place", timeout.NewWithContext(SessionPlaceHandler(deps), requestTimeout))
	v1.Delete("/sessions/:id", CloseSessionHandler(deps))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Get("/ws/map", MapWebSocketUpgrade(deps), websocket.New(MapWebSocketHandler(deps)))
}
