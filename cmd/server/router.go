package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/habits-api/internal/api"
	apiMiddleware "github.com/phrazzld/habits-api/internal/api/middleware"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	generationHandler := api.NewGenerationHandler(app.generationService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.verifier)

	r.Get("/health", generationHandler.Health)

	r.Route("/api/generation", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/templates/{id}", generationHandler.GenerateForTemplate)
		r.Get("/single", generationHandler.GetSingle)
		r.Delete("/single", generationHandler.ResetSingle)

		r.Post("/batch", generationHandler.GenerateAll)
		r.Get("/batch", generationHandler.GetBatch)
		r.Delete("/batch", generationHandler.ResetBatch)

		r.Get("/status", generationHandler.GetStatus)
		r.Delete("/session", generationHandler.EndSession)
		r.Get("/history", generationHandler.GetHistory)
		r.Get("/events", app.hub.ServeWS)
	})

	return r
}
