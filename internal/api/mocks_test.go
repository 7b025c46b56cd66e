package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/service"
	"github.com/phrazzld/habits-api/internal/service/auth"
	"github.com/phrazzld/habits-api/internal/store"
)

// mockGenerationService implements service.GenerationService with
// overridable function fields. Unset fields return zero values.
type mockGenerationService struct {
	GenerateForTemplateFn func(ctx context.Context, p auth.Principal, templateID string) (generation.SingleSnapshot, error)
	GenerateAllFn         func(ctx context.Context, p auth.Principal) (generation.BatchSnapshot, error)
	StatusFn              func(userID string) service.Status
	HistoryFn             func(ctx context.Context, userID string, limit int) ([]store.Run, error)

	ResetSingleCalls []string
	ResetBatchCalls  []string
	EndSessionCalls  []string
	Sessions         int
}

var _ service.GenerationService = (*mockGenerationService)(nil)

func (m *mockGenerationService) GenerateForTemplate(
	ctx context.Context,
	p auth.Principal,
	templateID string,
) (generation.SingleSnapshot, error) {
	return m.GenerateForTemplateFn(ctx, p, templateID)
}

func (m *mockGenerationService) GenerateAll(ctx context.Context, p auth.Principal) (generation.BatchSnapshot, error) {
	return m.GenerateAllFn(ctx, p)
}

func (m *mockGenerationService) Status(userID string) service.Status {
	if m.StatusFn != nil {
		return m.StatusFn(userID)
	}
	return service.Status{
		Single: generation.SingleSnapshot{State: generation.StateIdle},
		Batch:  generation.BatchSnapshot{State: generation.StateIdle},
	}
}

func (m *mockGenerationService) ResetSingle(userID string) {
	m.ResetSingleCalls = append(m.ResetSingleCalls, userID)
}

func (m *mockGenerationService) ResetBatch(userID string) {
	m.ResetBatchCalls = append(m.ResetBatchCalls, userID)
}

func (m *mockGenerationService) EndSession(userID string) bool {
	m.EndSessionCalls = append(m.EndSessionCalls, userID)
	return true
}

func (m *mockGenerationService) History(ctx context.Context, userID string, limit int) ([]store.Run, error) {
	return m.HistoryFn(ctx, userID, limit)
}

func (m *mockGenerationService) ReapIdle() int                       { return 0 }
func (m *mockGenerationService) RunReaper(ctx context.Context) error { return nil }
func (m *mockGenerationService) ActiveSessions() int                 { return m.Sessions }
func (m *mockGenerationService) Shutdown()                           {}

var testPrincipal = auth.Principal{UserID: "user-alice", Token: "token-1"}

// withPrincipal stands in for the auth middleware.
func withPrincipal(p auth.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// newTestRouter mounts h the way the server does, behind a fake auth layer.
func newTestRouter(h *GenerationHandler, p auth.Principal) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/api/generation", func(r chi.Router) {
		r.Use(withPrincipal(p))
		r.Post("/templates/{id}", h.GenerateForTemplate)
		r.Get("/single", h.GetSingle)
		r.Delete("/single", h.ResetSingle)
		r.Post("/batch", h.GenerateAll)
		r.Get("/batch", h.GetBatch)
		r.Delete("/batch", h.ResetBatch)
		r.Get("/status", h.GetStatus)
		r.Delete("/session", h.EndSession)
		r.Get("/history", h.GetHistory)
	})
	return r
}
