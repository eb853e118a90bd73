package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/fobi-id/obsmap/internal/adapters/nominatim"
	"github.com/fobi-id/obsmap/internal/adapters/postgres"
	"github.com/fobi-id/obsmap/internal/adapters/valkey"
	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/geocode"
	"github.com/fobi-id/obsmap/internal/core/usecases"
	"github.com/fobi-id/obsmap/internal/pkg/config"
	"github.com/fobi-id/obsmap/internal/pkg/logging"
	"github.com/fobi-id/obsmap/internal/workflows"
)

// Usage:
//
//	warmer                         run the worker
//	warmer start <user> [size]     start a warm-up run and wait for it
func main() {
	cfg, err := config.Load("obsmap-warmer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if len(os.Args) > 1 && os.Args[1] == "start" {
		startRun(c, cfg.Temporal.TaskQueue, os.Args[2:])
		return
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// The whole point of a warm-up is filling the shared cache.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	geocoder := nominatim.New(nominatim.Options{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
		Language:  cfg.Geocoder.Language,
		Timeout:   cfg.Geocoder.Timeout,
	})
	observations := usecases.NewObservationService(postgres.NewObservationRepo(db), cache, nil)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		// Public Nominatim allows one request per second.
		WorkerActivitiesPerSecond: 1,
	})
	w.RegisterWorkflow(workflows.WarmPlaceNamesWorkflow)
	w.RegisterActivity(&workflows.WarmActivities{
		Levels:   observations,
		Resolver: geocode.NewResolver(nil, geocoder, cache, cfg.Geocoder.SharedTTL),
	})

	slog.Info("warmer worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startRun(c client.Client, taskQueue string, args []string) {
	if len(args) < 1 {
		log.Fatal("usage: warmer start <user> [small|medium|large|extraLarge]")
	}
	input := workflows.WarmInput{UserID: args[0], GridSize: domain.GridSmall, Interval: time.Second}
	if len(args) > 1 {
		size, err := domain.ParseGridSize(args[1])
		if err != nil {
			log.Fatalf("size: %v", err)
		}
		input.GridSize = size
	}

	ctx := context.Background()
	run, err := workflows.StartWarmUp(ctx, c, taskQueue, input)
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("warm-up started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res workflows.WarmResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("warm-up failed: %v", err)
	}
	slog.Info("warm-up finished", "cells", res.Cells, "resolved", res.Resolved, "failed", res.Failed)
}
