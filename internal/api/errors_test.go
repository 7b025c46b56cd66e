package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/habits-api/internal/api/shared"
	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/platform/logger"
	"github.com/phrazzld/habits-api/internal/platform/routineapi"
	"github.com/phrazzld/habits-api/internal/service"
	"github.com/phrazzld/habits-api/internal/service/auth"
	"github.com/phrazzld/habits-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	launch := func(err error) error { return fmt.Errorf("%w: %w", generation.ErrLaunchFailed, err) }

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"unauthenticated", service.ErrUnauthenticated, http.StatusUnauthorized},
		{"upstream rejected token", launch(&routineapi.APIError{StatusCode: http.StatusForbidden}), http.StatusUnauthorized},
		{"already generating", generation.ErrAlreadyGenerating, http.StatusConflict},
		{"invalid template", generation.ErrInvalidTemplateID, http.StatusBadRequest},
		{"invalid request", fmt.Errorf("%w: limit", ErrInvalidRequest), http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"template not found", launch(&routineapi.APIError{StatusCode: http.StatusNotFound}), http.StatusNotFound},
		{"run not found", store.ErrRunNotFound, http.StatusNotFound},
		{"upstream throttled", launch(&routineapi.APIError{StatusCode: http.StatusTooManyRequests}), http.StatusTooManyRequests},
		{"history disabled", service.ErrHistoryDisabled, http.StatusNotImplemented},
		{"shutting down", service.ErrShuttingDown, http.StatusServiceUnavailable},
		{"monitor closed", generation.ErrMonitorClosed, http.StatusServiceUnavailable},
		{"upstream timeout", launch(context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"launch failed", launch(errors.New("connection reset")), http.StatusBadGateway},
		{"list failed", fmt.Errorf("%w: eof", generation.ErrTemplateListFailed), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "Token expired", GetSafeErrorMessage(auth.ErrExpiredToken))
	assert.Equal(t, "Generation already in progress", GetSafeErrorMessage(generation.ErrAlreadyGenerating))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New("pq: password authentication failed for user habits")))
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logger.WithLogger(shared.SetTraceID(context.Background()), log)
	req := httptest.NewRequest(http.MethodPost, "/api/generation/batch", nil).WithContext(ctx)

	t.Run("unmapped errors use fallback and are redacted", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		err := errors.New("query failed for postgres://habits:hunter2@db:5432/habits")

		HandleAPIError(recorder, req, err, "Failed to start batch generation")

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		body := decode[shared.ErrorResponse](t, recorder)
		assert.Equal(t, "Failed to start batch generation", body.Error)
		assert.Equal(t, shared.GetTraceID(ctx), body.TraceID)
		assert.NotContains(t, logs.String(), "hunter2")
	})

	t.Run("mapped errors ignore fallback", func(t *testing.T) {
		recorder := httptest.NewRecorder()

		HandleAPIError(recorder, req, generation.ErrAlreadyGenerating, "Failed to start batch generation")

		assert.Equal(t, http.StatusConflict, recorder.Code)
		assert.Equal(t, "Generation already in progress", decode[shared.ErrorResponse](t, recorder).Error)
	})
}
