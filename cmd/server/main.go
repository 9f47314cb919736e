// Package main is the entry point for the calculations API server.
//
// The main package stays minimal:
// 1. Read configuration (env vars, optionally seeded from .env)
// 2. Build the logger
// 3. Create and start the server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/calculations-api/internal/config"
	"github.com/sakif/calculations-api/internal/server"
)

// startupTimeout bounds opening the store and running migrations.
const startupTimeout = 30 * time.Second

func main() {
	// === 1. READ CONFIGURATION ===
	// Config errors are reported before a configured logger exists, so they
	// go through the default one.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_FORMAT=json for log shippers, text for humans.
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	// Validate has already checked the level parses.
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
