package main

import (
	"context"
	"log"
	"os"
	"time"

	"freelance-match/internal/config"
	"freelance-match/internal/database/migration"
	dbpostgres "freelance-match/internal/database/postgres"
	"freelance-match/internal/pkg/logger"
	"freelance-match/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		lg.Error("failed to connect database", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	res, err := migration.Runner{FS: migrations.FS}.Run(ctx, db.SQLDB())
	if err != nil {
		lg.Error("migration failed", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	for _, m := range res.Applied {
		lg.Info("migration applied", map[string]interface{}{"version": m.Version, "name": m.Name})
	}
	lg.Info("migrations complete", map[string]interface{}{
		"applied": len(res.Applied),
		"skipped": res.Skipped,
	})
}
