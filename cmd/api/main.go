package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fobi-id/obsmap/internal/adapters/http"
	natsadapter "github.com/fobi-id/obsmap/internal/adapters/nats"
	"github.com/fobi-id/obsmap/internal/adapters/nominatim"
	"github.com/fobi-id/obsmap/internal/adapters/postgres"
	"github.com/fobi-id/obsmap/internal/adapters/valkey"
	"github.com/fobi-id/obsmap/internal/core/geocode"
	"github.com/fobi-id/obsmap/internal/core/ports"
	"github.com/fobi-id/obsmap/internal/core/usecases"
	"github.com/fobi-id/obsmap/internal/pkg/config"
	"github.com/fobi-id/obsmap/internal/pkg/logging"
	"github.com/fobi-id/obsmap/internal/pkg/metrics"
	"github.com/fobi-id/obsmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("obsmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	deps := &http.Dependencies{
		DB:           db,
		ZoomDebounce: cfg.Map.ZoomDebounce,
	}

	// Cache. The service runs without it, only slower.
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
		deps.Cache = c
	}

	// NATS
	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	// Raw NATS connection for the WebSocket reload relay
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer nc.Drain()
		deps.NATS = nc
	}

	geocoder := nominatim.New(nominatim.Options{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
		Language:  cfg.Geocoder.Language,
		Timeout:   cfg.Geocoder.Timeout,
	})

	// Use cases
	observationSvc := usecases.NewObservationService(postgres.NewObservationRepo(db), cache, publisher)
	sessionSvc := usecases.NewSessionService(observationSvc, geocoder, cache, usecases.SessionOptions{
		MaxSessions: cfg.Sessions.MaxSessions,
		IdleTTL:     cfg.Sessions.IdleTTL,
		SharedTTL:   cfg.Geocoder.SharedTTL,
	})

	deps.Observations = observationSvc
	deps.Sessions = sessionSvc
	deps.Places = geocode.NewResolver(nil, geocoder, cache, cfg.Geocoder.SharedTTL)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "obsmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "Link, Location, ETag",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped", "open_sessions", sessionSvc.Len())
}
