package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	natsadapter "github.com/fobi-id/obsmap/internal/adapters/nats"
	"github.com/fobi-id/obsmap/internal/adapters/postgres"
	"github.com/fobi-id/obsmap/internal/adapters/upstream"
	"github.com/fobi-id/obsmap/internal/adapters/valkey"
	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/ports"
	"github.com/fobi-id/obsmap/internal/core/usecases"
	"github.com/fobi-id/obsmap/internal/pkg/config"
	"github.com/fobi-id/obsmap/internal/pkg/logging"
)

// Usage: ingestor <user-ids> [sources]
//
// Both arguments are comma-separated. User ids may also come from
// OBSMAP_INGEST_USERS. Sources default to all four.
func main() {
	cfg, err := config.Load("obsmap-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	users := splitList(os.Getenv("OBSMAP_INGEST_USERS"))
	if len(os.Args) > 1 {
		users = splitList(os.Args[1])
	}
	if len(users) == 0 {
		log.Fatal("no users given: pass a comma-separated list or set OBSMAP_INGEST_USERS")
	}

	var sources []domain.Source
	if len(os.Args) > 2 {
		for _, s := range splitList(os.Args[2]) {
			src, err := domain.ParseSource(s)
			if err != nil {
				log.Fatalf("sources: %v", err)
			}
			sources = append(sources, src)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, caches will expire on their own", "error", err)
	} else {
		defer c.Close()
		cache = c
	}

	var publisher ports.EventPublisher
	if p, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, open map sessions will not reload", "error", err)
	} else {
		defer p.Close()
		publisher = p
	}

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.Upstream.PageSize, cfg.Upstream.Timeout)
	observations := usecases.NewObservationService(postgres.NewObservationRepo(db), cache, publisher)
	syncer := usecases.NewSyncService(client, observations)

	slog.Info("observation ingest starting", "users", len(users), "upstream", cfg.Upstream.BaseURL)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	sem := make(chan struct{}, 4) // max 4 users in flight

	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := syncer.SyncUser(ctx, userID, sources)
			if err != nil {
				slog.Error("user sync incomplete", "user_id", userID, "stored", n, "error", err)
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(u)
	}

	wg.Wait()
	slog.Info("ingestion complete", "stored", total)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
