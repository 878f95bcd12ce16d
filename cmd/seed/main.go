package main

import (
	"context"
	"flag"
	"log"
	"time"

	"clynto/backend/internal/config"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/seed"
)

func main() {
	ctx := context.Background()
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	pool, err := repository.Connect(ctx, cfg.DSN(), cfg.DB.MaxConns)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	res, err := seed.Run(ctx, repository.NewPostgresStore(pool), logger, time.Now())
	if err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}
	logger.Info("seeding complete", "tenant_id", res.TenantID, "playbooks_added", res.Playbooks, "demo_data", res.Demo)
}
