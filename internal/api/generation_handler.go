package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/habits-api/internal/api/shared"
	"github.com/phrazzld/habits-api/internal/service"
)

// GenerationHandler handles the generation endpoints of the authenticated user.
type GenerationHandler struct {
	generationService service.GenerationService
	logger            *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(generationService service.GenerationService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandler{
		generationService: generationService,
		logger:            logger.With("component", "generation_handler"),
	}
}

// GenerateForTemplate handles POST /api/generation/templates/{id}.
// It responds 202 with the single monitor's state once the job is launched.
func (h *GenerationHandler) GenerateForTemplate(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	templateID, err := pathTemplateID(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	snap, err := h.generationService.GenerateForTemplate(r.Context(), principal, templateID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start task generation")
		return
	}

	h.logger.Info("single generation accepted",
		"trace_id", shared.GetTraceID(r.Context()),
		"user_id", principal.UserID,
		"template_id", templateID,
		"job_id", snap.JobID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, singleToResponse(snap))
}

// GetSingle handles GET /api/generation/single.
func (h *GenerationHandler) GetSingle(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	status := h.generationService.Status(principal.UserID)
	shared.RespondWithJSON(w, r, http.StatusOK, singleToResponse(status.Single))
}

// ResetSingle handles DELETE /api/generation/single.
func (h *GenerationHandler) ResetSingle(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	h.generationService.ResetSingle(principal.UserID)
	status := h.generationService.Status(principal.UserID)
	shared.RespondWithJSON(w, r, http.StatusOK, singleToResponse(status.Single))
}

// GenerateAll handles POST /api/generation/batch.
// It responds 202 once a job was attempted for every active template.
func (h *GenerationHandler) GenerateAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	snap, err := h.generationService.GenerateAll(r.Context(), principal)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start batch generation")
		return
	}

	h.logger.Info("batch generation accepted",
		"trace_id", shared.GetTraceID(r.Context()),
		"user_id", principal.UserID,
		"state", snap.State,
		"total_count", snap.TotalCount)
	shared.RespondWithJSON(w, r, http.StatusAccepted, batchToResponse(snap))
}

// GetBatch handles GET /api/generation/batch.
func (h *GenerationHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	status := h.generationService.Status(principal.UserID)
	shared.RespondWithJSON(w, r, http.StatusOK, batchToResponse(status.Batch))
}

// ResetBatch handles DELETE /api/generation/batch.
func (h *GenerationHandler) ResetBatch(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	h.generationService.ResetBatch(principal.UserID)
	status := h.generationService.Status(principal.UserID)
	shared.RespondWithJSON(w, r, http.StatusOK, batchToResponse(status.Batch))
}

// GetStatus handles GET /api/generation/status.
func (h *GenerationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	status := h.generationService.Status(principal.UserID)
	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{
		Single: singleToResponse(status.Single),
		Batch:  batchToResponse(status.Batch),
	})
}

// EndSession handles DELETE /api/generation/session.
func (h *GenerationHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if h.generationService.EndSession(principal.UserID) {
		h.logger.Info("generation session ended by client",
			"trace_id", shared.GetTraceID(r.Context()),
			"user_id", principal.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /api/generation/history?limit=N.
func (h *GenerationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	query, err := parseHistoryQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	runs, err := h.generationService.History(r.Context(), principal.UserID, query.Limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load generation history")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, runsToResponse(runs))
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}

// Health handles GET /health.
func (h *GenerationHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:         "ok",
		ActiveSessions: h.generationService.ActiveSessions(),
	})
}
