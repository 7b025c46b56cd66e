package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/habits-api/internal/api"
	"github.com/phrazzld/habits-api/internal/config"
	"github.com/phrazzld/habits-api/internal/events"
	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/platform/clock"
	"github.com/phrazzld/habits-api/internal/platform/postgres"
	"github.com/phrazzld/habits-api/internal/platform/routineapi"
	"github.com/phrazzld/habits-api/internal/service"
	"github.com/phrazzld/habits-api/internal/service/auth"
	"github.com/phrazzld/habits-api/internal/store"
)

// application holds the shared dependencies of the server and releases
// them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when run history is disabled.
	db *sql.DB

	verifier          auth.TokenVerifier
	emitter           *events.InMemoryEventEmitter
	hub               *api.EventHub
	generationService service.GenerationService
}

// newApplication wires every component described by cfg. It opens and
// migrates the database only when history is enabled.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	var runs store.RunStore
	if cfg.Database.HistoryEnabled() {
		db, err := postgres.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.db = db
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		runs = postgres.NewPostgresRunStore(db, cfg.Database.RunsPerUser)
	} else {
		logger.Info("database not configured, generation history disabled")
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	app.verifier = verifier

	client := routineapi.NewClient(cfg.Upstream.BaseURL,
		routineapi.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
		routineapi.WithRateLimit(cfg.Upstream.RequestsPerSecond, cfg.Upstream.Burst),
		routineapi.WithLogger(logger),
	)
	upstream := func(token string) service.Upstream { return client.WithToken(token) }

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.hub = api.NewEventHub(cfg.Server.AllowedOrigins, logger)
	app.emitter.RegisterHandler(app.hub)
	if runs != nil {
		app.emitter.RegisterHandler(service.NewHistoryRecorder(runs, logger),
			events.TypeSingleFinished, events.TypeBatchFinished)
	}

	generationService, err := service.NewGenerationService(
		upstream,
		app.emitter,
		runs,
		clock.System{},
		service.SessionConfig{
			Monitor: generation.Config{
				PollInterval:    cfg.Generation.PollInterval,
				Timeout:         cfg.Generation.Timeout,
				CompletionDelay: cfg.Generation.CompletionDelay,
			},
			SessionTTL:   cfg.Generation.SessionTTL,
			ReapInterval: cfg.Generation.ReapInterval,
		},
		logger,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create generation service: %w", err)
	}
	app.generationService = generationService

	return app, nil
}

// cleanup stops sessions, disconnects websocket clients and closes the
// database. It tolerates partially constructed applications.
func (app *application) cleanup() {
	if app.generationService != nil {
		app.generationService.Shutdown()
	}
	if app.hub != nil {
		app.hub.Close()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
