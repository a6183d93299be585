// Command server runs the cmdshift-learn progress API.
//
// Configuration comes from the environment (and a .env file if present);
// see internal/config for the variables.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/cmdshift-learn/internal/config"
	"github.com/sakif/cmdshift-learn/internal/logging"
	"github.com/sakif/cmdshift-learn/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	slog.SetDefault(logger)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
