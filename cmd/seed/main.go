// Command seed loads the starter tutorials and challenges into the sqlite
// content catalog. Running it again updates titles and XP in place.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/cmdshift-learn/internal/config"
	"github.com/sakif/cmdshift-learn/internal/content"
	"github.com/sakif/cmdshift-learn/internal/logging"
	sqliteRepo "github.com/sakif/cmdshift-learn/internal/repository/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	items := content.DefaultItems()
	if err := content.Seed(context.Background(), db, items); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("content seeded", slog.Int("items", len(items)), slog.String("database", cfg.DBPath))
}
