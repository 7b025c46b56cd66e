package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/habits-api/internal/events"
	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/store"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// mockUpstream is an Upstream whose behaviour is set per test through
// function fields. The factory records every token it was asked for.
type mockUpstream struct {
	StartFn  func(ctx context.Context, templateID string) (*generation.GenerationJob, error)
	StatusFn func(ctx context.Context, templateID, jobID string) (*generation.GenerationJob, error)
	ListFn   func(ctx context.Context) ([]generation.Template, error)

	mu      sync.Mutex
	tokens  []string
	fetches int
}

func newMockUpstream() *mockUpstream {
	return &mockUpstream{
		StartFn: func(ctx context.Context, templateID string) (*generation.GenerationJob, error) {
			return &generation.GenerationJob{
				JobID:      "job-" + templateID,
				TemplateID: templateID,
				Status:     generation.JobStatusPending,
			}, nil
		},
		StatusFn: func(ctx context.Context, templateID, jobID string) (*generation.GenerationJob, error) {
			count := 3
			return &generation.GenerationJob{
				JobID:               jobID,
				TemplateID:          templateID,
				Status:              generation.JobStatusCompleted,
				GeneratedTasksCount: &count,
			}, nil
		},
		ListFn: func(ctx context.Context) ([]generation.Template, error) {
			return []generation.Template{
				{ID: "tpl-a", Title: "Morning", IsActive: true},
				{ID: "tpl-b", Title: "Evening", IsActive: true},
				{ID: "tpl-c", Title: "Paused", IsActive: false},
			}, nil
		},
	}
}

func (u *mockUpstream) factory(token string) Upstream {
	u.mu.Lock()
	u.tokens = append(u.tokens, token)
	u.mu.Unlock()
	return u
}

func (u *mockUpstream) StartGeneration(ctx context.Context, templateID string) (*generation.GenerationJob, error) {
	return u.StartFn(ctx, templateID)
}

func (u *mockUpstream) FetchStatus(ctx context.Context, templateID, jobID string) (*generation.GenerationJob, error) {
	u.mu.Lock()
	u.fetches++
	u.mu.Unlock()
	return u.StatusFn(ctx, templateID, jobID)
}

func (u *mockUpstream) ListTemplates(ctx context.Context) ([]generation.Template, error) {
	return u.ListFn(ctx)
}

func (u *mockUpstream) Tokens() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.tokens...)
}

func (u *mockUpstream) Fetches() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fetches
}

// recordingEmitter keeps every emitted event and optionally fails.
type recordingEmitter struct {
	Err error

	mu     sync.Mutex
	events []*events.Event
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.Err
}

func (e *recordingEmitter) OfType(eventType string) []*events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*events.Event
	for _, ev := range e.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// mockRunStore is a store.RunStore backed by function fields.
type mockRunStore struct {
	SaveFn func(ctx context.Context, run store.Run) error
	ListFn func(ctx context.Context, userID string, limit int) ([]store.Run, error)

	mu    sync.Mutex
	saved []store.Run
}

func (m *mockRunStore) SaveRun(ctx context.Context, run store.Run) error {
	m.mu.Lock()
	m.saved = append(m.saved, run)
	m.mu.Unlock()
	if m.SaveFn != nil {
		return m.SaveFn(ctx, run)
	}
	return nil
}

func (m *mockRunStore) ListRecentRuns(ctx context.Context, userID string, limit int) ([]store.Run, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockRunStore) Saved() []store.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Run(nil), m.saved...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testSessionConfig() SessionConfig {
	return SessionConfig{
		Monitor: generation.Config{
			PollInterval:    3 * time.Second,
			Timeout:         180 * time.Second,
			CompletionDelay: time.Second,
		},
		SessionTTL:   10 * time.Minute,
		ReapInterval: time.Minute,
	}
}
