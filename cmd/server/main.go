// Package main runs the habits API server, which orchestrates routine-task
// generation jobs for authenticated users and streams their progress.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/phrazzld/habits-api/internal/config"
	"github.com/phrazzld/habits-api/internal/platform/logger"
)

func main() {
	if err := start(context.Background()); err != nil {
		log.Fatalf("habits-api: %v", err)
	}
}

func start(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"history_enabled", cfg.Database.HistoryEnabled(),
		"jwks_auth", cfg.Auth.JWKSURL != "")

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return err
	}
	return app.serve(ctx)
}
