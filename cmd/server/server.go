package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
)

// serve runs the HTTP server and the session reaper until a termination
// signal arrives, ctx is canceled or either actor fails. Cleanup always
// runs before it returns.
func (app *application) serve(ctx context.Context) error {
	defer app.cleanup()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				app.logger.Info("termination signal received, shutting down")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				app.logger.Info("starting server", "port", app.config.Server.Port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					app.logger.Error("server shutdown failed", "error", err)
				}
			},
		)
	}

	// Idle session reaper.
	{
		reaperCtx, reaperCancel := context.WithCancel(ctx)
		defer reaperCancel()

		g.Add(
			func() error {
				return app.generationService.RunReaper(reaperCtx)
			},
			func(_ error) {
				reaperCancel()
			},
		)
	}

	if err := g.Run(); err != nil {
		return err
	}
	app.logger.Info("server shutdown completed")
	return nil
}
