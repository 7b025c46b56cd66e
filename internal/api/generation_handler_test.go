package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/habits-api/internal/api/shared"
	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/platform/routineapi"
	"github.com/phrazzld/habits-api/internal/service"
	"github.com/phrazzld/habits-api/internal/service/auth"
	"github.com/phrazzld/habits-api/internal/store"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func serve(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &v))
	return v
}

func TestGenerateForTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{name: "accepted", expectedStatus: http.StatusAccepted},
		{
			name:           "already generating",
			err:            generation.ErrAlreadyGenerating,
			expectedStatus: http.StatusConflict,
			expectedError:  "Generation already in progress",
		},
		{
			name: "upstream template missing",
			err: fmt.Errorf("%w: %w", generation.ErrLaunchFailed,
				&routineapi.APIError{StatusCode: http.StatusNotFound, Message: "no such template"}),
			expectedStatus: http.StatusNotFound,
			expectedError:  "Routine template not found",
		},
		{
			name: "upstream down",
			err: fmt.Errorf("%w: %w", generation.ErrLaunchFailed,
				&routineapi.APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "Failed to start task generation",
		},
		{
			name:           "shutting down",
			err:            service.ErrShuttingDown,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "Service is shutting down",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotPrincipal auth.Principal
			var gotTemplate string
			svc := &mockGenerationService{
				GenerateForTemplateFn: func(ctx context.Context, p auth.Principal, templateID string) (generation.SingleSnapshot, error) {
					gotPrincipal, gotTemplate = p, templateID
					if tc.err != nil {
						return generation.SingleSnapshot{State: generation.StateFailed}, tc.err
					}
					return generation.SingleSnapshot{
						State:      generation.StateGenerating,
						TemplateID: templateID,
						JobID:      "job-1",
						StartedAt:  testStart,
					}, nil
				},
			}
			router := newTestRouter(NewGenerationHandler(svc, nil), testPrincipal)

			recorder := serve(t, router, http.MethodPost, "/api/generation/templates/tpl-a")

			assert.Equal(t, tc.expectedStatus, recorder.Code)
			assert.Equal(t, testPrincipal, gotPrincipal)
			assert.Equal(t, "tpl-a", gotTemplate)

			if tc.err != nil {
				resp := decode[shared.ErrorResponse](t, recorder)
				assert.Equal(t, tc.expectedError, resp.Error)
				return
			}
			resp := decode[SingleStatusResponse](t, recorder)
			assert.Equal(t, "generating", resp.State)
			assert.Equal(t, "job-1", resp.JobID)
			require.NotNil(t, resp.StartedAt)
			assert.True(t, resp.StartedAt.Equal(testStart))
		})
	}
}

func TestGenerateAll(t *testing.T) {
	t.Parallel()

	count := 4
	svc := &mockGenerationService{
		GenerateAllFn: func(ctx context.Context, p auth.Principal) (generation.BatchSnapshot, error) {
			return generation.BatchSnapshot{
				State:          generation.StateGenerating,
				TotalCount:     2,
				CompletedCount: 1,
				Entries: []generation.BatchEntry{
					{TemplateID: "a", Title: "Morning", Job: generation.GenerationJob{
						JobID: "job-a", TemplateID: "a", Status: generation.JobStatusCompleted, GeneratedTasksCount: &count,
					}},
					{TemplateID: "b", Title: "Evening", Job: generation.GenerationJob{
						JobID: "job-b", TemplateID: "b", Status: generation.JobStatusPending,
					}},
				},
			}, nil
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), testPrincipal)

	recorder := serve(t, router, http.MethodPost, "/api/generation/batch")

	require.Equal(t, http.StatusAccepted, recorder.Code)
	resp := decode[BatchStatusResponse](t, recorder)
	assert.Equal(t, "generating", resp.State)
	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, 1, resp.CompletedCount)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "Morning", resp.Entries[0].Title)
	assert.True(t, resp.Entries[0].Job.Completed)
	require.NotNil(t, resp.Entries[0].Job.GeneratedTasksCount)
	assert.Equal(t, 4, *resp.Entries[0].Job.GeneratedTasksCount)
	assert.False(t, resp.Entries[1].Job.Completed)
	assert.Nil(t, resp.Entries[1].Job.GeneratedTasksCount)
}

func TestGenerateAll_ListFailure(t *testing.T) {
	t.Parallel()

	svc := &mockGenerationService{
		GenerateAllFn: func(ctx context.Context, p auth.Principal) (generation.BatchSnapshot, error) {
			return generation.BatchSnapshot{State: generation.StateFailed},
				fmt.Errorf("%w: %w", generation.ErrTemplateListFailed, errors.New("connection refused"))
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), testPrincipal)

	recorder := serve(t, router, http.MethodPost, "/api/generation/batch")

	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	assert.Equal(t, "Failed to load routine templates", decode[shared.ErrorResponse](t, recorder).Error)
}

func TestStatusEndpoints(t *testing.T) {
	t.Parallel()

	svc := &mockGenerationService{
		StatusFn: func(userID string) service.Status {
			return service.Status{
				Single: generation.SingleSnapshot{
					State:               generation.StateCompleted,
					TemplateID:          "tpl-a",
					GeneratedTasksCount: 3,
				},
				Batch: generation.BatchSnapshot{State: generation.StateFailed, Error: "generation timed out after 3m0s"},
			}
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), testPrincipal)

	single := decode[SingleStatusResponse](t, serve(t, router, http.MethodGet, "/api/generation/single"))
	assert.Equal(t, "completed", single.State)
	assert.Equal(t, 3, single.GeneratedTasksCount)
	assert.Nil(t, single.StartedAt)

	batch := decode[BatchStatusResponse](t, serve(t, router, http.MethodGet, "/api/generation/batch"))
	assert.Equal(t, "failed", batch.State)
	assert.Equal(t, "generation timed out after 3m0s", batch.Error)
	assert.NotNil(t, batch.Entries, "entries serialize as an empty list")

	both := decode[StatusResponse](t, serve(t, router, http.MethodGet, "/api/generation/status"))
	assert.Equal(t, "completed", both.Single.State)
	assert.Equal(t, "failed", both.Batch.State)
}

func TestResetAndEndSession(t *testing.T) {
	t.Parallel()

	svc := &mockGenerationService{}
	router := newTestRouter(NewGenerationHandler(svc, nil), testPrincipal)

	recorder := serve(t, router, http.MethodDelete, "/api/generation/single")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "idle", decode[SingleStatusResponse](t, recorder).State)

	recorder = serve(t, router, http.MethodDelete, "/api/generation/batch")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "idle", decode[BatchStatusResponse](t, recorder).State)

	recorder = serve(t, router, http.MethodDelete, "/api/generation/session")
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	assert.Equal(t, []string{"user-alice"}, svc.ResetSingleCalls)
	assert.Equal(t, []string{"user-alice"}, svc.ResetBatchCalls)
	assert.Equal(t, []string{"user-alice"}, svc.EndSessionCalls)
}

func TestGetHistory(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	var gotLimit int
	svc := &mockGenerationService{
		HistoryFn: func(ctx context.Context, userID string, limit int) ([]store.Run, error) {
			gotLimit = limit
			return []store.Run{{
				ID:                  runID,
				UserID:              userID,
				Kind:                store.RunKindBatch,
				State:               "completed",
				TotalCount:          2,
				CompletedCount:      2,
				GeneratedTasksCount: 7,
				StartedAt:           testStart,
				FinishedAt:          testStart.Add(9 * time.Second),
			}}, nil
		},
	}
	router := newTestRouter(NewGenerationHandler(svc, nil), testPrincipal)

	recorder := serve(t, router, http.MethodGet, "/api/generation/history?limit=5")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 5, gotLimit)

	resp := decode[HistoryResponse](t, recorder)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, runID, resp.Runs[0].ID)
	assert.Equal(t, "batch", resp.Runs[0].Kind)
	assert.Equal(t, 7, resp.Runs[0].GeneratedTasksCount)

	serve(t, router, http.MethodGet, "/api/generation/history")
	assert.Equal(t, store.ClampLimit(0), gotLimit)
}

func TestGetHistory_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		target         string
		err            error
		expectedStatus int
	}{
		{name: "non numeric limit", target: "/api/generation/history?limit=all", expectedStatus: http.StatusBadRequest},
		{name: "limit too large", target: "/api/generation/history?limit=500", expectedStatus: http.StatusBadRequest},
		{name: "limit zero", target: "/api/generation/history?limit=0", expectedStatus: http.StatusBadRequest},
		{
			name:           "history disabled",
			target:         "/api/generation/history",
			err:            service.ErrHistoryDisabled,
			expectedStatus: http.StatusNotImplemented,
		},
		{
			name:           "store failure",
			target:         "/api/generation/history",
			err:            &service.ServiceError{Operation: "history", Message: "failed", Err: errors.New("timeout")},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockGenerationService{
				HistoryFn: func(ctx context.Context, userID string, limit int) ([]store.Run, error) {
					return nil, tc.err
				},
			}
			router := newTestRouter(NewGenerationHandler(svc, nil), testPrincipal)

			recorder := serve(t, router, http.MethodGet, tc.target)
			assert.Equal(t, tc.expectedStatus, recorder.Code)
		})
	}
}

func TestHandlersRequirePrincipal(t *testing.T) {
	t.Parallel()

	router := newTestRouter(NewGenerationHandler(&mockGenerationService{}, nil), auth.Principal{})

	for _, target := range []struct{ method, path string }{
		{http.MethodPost, "/api/generation/templates/tpl-a"},
		{http.MethodGet, "/api/generation/single"},
		{http.MethodPost, "/api/generation/batch"},
		{http.MethodDelete, "/api/generation/session"},
		{http.MethodGet, "/api/generation/history"},
	} {
		recorder := serve(t, router, target.method, target.path)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, "%s %s", target.method, target.path)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router := newTestRouter(NewGenerationHandler(&mockGenerationService{Sessions: 3}, nil), testPrincipal)

	recorder := serve(t, router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, HealthResponse{Status: "ok", ActiveSessions: 3}, decode[HealthResponse](t, recorder))
}
