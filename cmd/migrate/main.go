package main

import (
	"context"
	"log"
	"os"

	"github.com/fobi-id/obsmap/internal/adapters/postgres"
	"github.com/fobi-id/obsmap/internal/pkg/config"
	"github.com/fobi-id/obsmap/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}
	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatalf("unknown command: %s", direction)
	}

	cfg, err := config.Load("obsmap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, "text")

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db, direction); err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}
	log.Printf("all %s migrations applied", direction)
}
