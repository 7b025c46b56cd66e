package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/phrazzld/habits-api/internal/api/shared"
	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/platform/routineapi"
	"github.com/phrazzld/habits-api/internal/service"
	"github.com/phrazzld/habits-api/internal/service/auth"
	"github.com/phrazzld/habits-api/internal/store"
)

// ErrInvalidRequest marks malformed query parameters and path values.
var ErrInvalidRequest = errors.New("invalid request")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	var apiErr *routineapi.APIError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrMissingSubject),
		errors.Is(err, service.ErrUnauthenticated),
		routineapi.IsUnauthorized(err):
		return http.StatusUnauthorized

	// Conflict errors
	case errors.Is(err, generation.ErrAlreadyGenerating):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, generation.ErrInvalidTemplateID),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest

	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		routineapi.IsNotFound(err):
		return http.StatusNotFound

	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		return http.StatusTooManyRequests

	case errors.Is(err, service.ErrHistoryDisabled):
		return http.StatusNotImplemented

	case errors.Is(err, service.ErrShuttingDown),
		errors.Is(err, generation.ErrMonitorClosed):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	// Upstream failures
	case errors.Is(err, generation.ErrLaunchFailed),
		errors.Is(err, generation.ErrTemplateListFailed):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-friendly message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingSubject):
		return "Invalid token"

	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, service.ErrUnauthenticated):
		return "Authentication required"

	case routineapi.IsUnauthorized(err):
		return "Routine service rejected the credentials"

	case errors.Is(err, generation.ErrAlreadyGenerating):
		return "Generation already in progress"

	case errors.Is(err, generation.ErrInvalidTemplateID):
		return "Invalid template id"

	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request parameters"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case routineapi.IsNotFound(err):
		return "Routine template not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, service.ErrHistoryDisabled):
		return "Run history is not enabled"

	case errors.Is(err, service.ErrShuttingDown),
		errors.Is(err, generation.ErrMonitorClosed):
		return "Service is shutting down"

	case errors.Is(err, context.DeadlineExceeded):
		return "Routine service timed out"

	case errors.Is(err, generation.ErrLaunchFailed):
		return "Failed to start task generation"

	case errors.Is(err, generation.ErrTemplateListFailed):
		return "Failed to load routine templates"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for err and logs the redacted
// details. fallback replaces the generic message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized || status == http.StatusConflict {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
