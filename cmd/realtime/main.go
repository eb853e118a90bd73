package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	natsadapter "github.com/fobi-id/obsmap/internal/adapters/nats"
	"github.com/fobi-id/obsmap/internal/adapters/postgres"
	"github.com/fobi-id/obsmap/internal/adapters/valkey"
	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/usecases"
	"github.com/fobi-id/obsmap/internal/pkg/config"
	"github.com/fobi-id/obsmap/internal/pkg/logging"
	"github.com/fobi-id/obsmap/internal/workflows"
)

// realtime consumes observations.updated events. Each event drops the
// user's cached listings and level sets and, when Temporal is reachable,
// starts a place-name warm-up for the user.
func main() {
	cfg, err := config.Load("obsmap-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	observations := usecases.NewObservationService(postgres.NewObservationRepo(db), cache, nil)

	var temporal client.Client
	if c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	}); err != nil {
		slog.Warn("temporal unavailable, place-name warm-up disabled", "error", err)
	} else {
		defer c.Close()
		temporal = c
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "obsmap-realtime")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeObservationsUpdated(ctx, func(ctx context.Context, ev *domain.ObservationsUpdated) error {
		observations.Invalidate(ctx, ev.UserID)
		slog.Info("caches invalidated", "user_id", ev.UserID, "count", ev.Count)

		if temporal == nil {
			return nil
		}
		startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		input := workflows.WarmInput{UserID: ev.UserID, GridSize: domain.GridSmall, Interval: time.Second}
		if _, err := workflows.StartWarmUp(startCtx, temporal, cfg.Temporal.TaskQueue, input); err != nil {
			slog.Warn("warm-up not started", "user_id", ev.UserID, "error", err)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("realtime consumer started", "subject", natsadapter.UpdatedSubjectAll)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down realtime consumer", "signal", sig.String())
}
