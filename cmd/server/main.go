// Package main is the entry point for the snipshare API server.
//
// MAIN PACKAGE IN GO:
// The main package is kept minimal. Its job is to:
// 1. Read configuration (defaults, optional YAML, .env and env vars)
// 2. Create dependencies (logger, optional code sandbox)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, internal/handler, ...).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/snipshare/internal/config"
	"github.com/sakif/snipshare/internal/executor"
	"github.com/sakif/snipshare/internal/executor/docker"
	"github.com/sakif/snipshare/internal/logging"
	"github.com/sakif/snipshare/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "snipshare:", err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	// The closer flushes the rotating log file, if one is in use.
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	// === 3. CODE SANDBOX ===
	// Optional: without Docker the server still starts and
	// POST /api/snippets/{id}/run answers 503.
	var exec executor.Executor
	if cfg.Sandbox.Enabled {
		dcfg := docker.DefaultConfig()
		dcfg.Image = cfg.Sandbox.Image
		dcfg.Timeout = cfg.Sandbox.Timeout

		sandbox, err := docker.New(context.Background(), dcfg, logger)
		if err != nil {
			logger.Warn("docker sandbox unavailable, snippet runs are disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer sandbox.Close()
			exec = sandbox
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger, exec)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM and closes the database on the way out.
	return srv.Start()
}
