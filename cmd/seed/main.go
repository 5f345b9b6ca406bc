// Package main loads the language and country registries into the database
// without starting the server.
//
// Usage:
//
//	go run ./cmd/seed --data-path ~/asylum --seed-file extra.yaml
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/asylumproject/asylum-server/internal/config"
	"github.com/asylumproject/asylum-server/internal/logger"
	"github.com/asylumproject/asylum-server/internal/seed"
	"github.com/asylumproject/asylum-server/internal/store/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	if err := os.MkdirAll(cfg.Data.BasePath, 0o755); err != nil {
		log.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.Open(cfg.Data.DatabasePath(), log.Logger)
	if err != nil {
		log.Error("Failed to open database", "error", err)
		os.Exit(1)
	}

	if err := seed.Load(context.Background(), db, cfg.Seed.File, log.Logger); err != nil {
		log.Error("Seeding failed", "error", err)
		_ = db.Close()
		os.Exit(1)
	}

	if err := db.Close(); err != nil {
		log.Error("Failed to close database", "error", err)
	}
	log.Info("Reference data loaded", "database", cfg.Data.DatabasePath())
}
