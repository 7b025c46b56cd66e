package generation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/habits-api/internal/platform/clock/clocktest"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// MockJobClient is a JobClient whose behaviour is set per test through
// function fields. It is safe for concurrent use.
type MockJobClient struct {
	StartFn  func(ctx context.Context, templateID string) (*GenerationJob, error)
	StatusFn func(ctx context.Context, templateID, jobID string) (*GenerationJob, error)

	mu      sync.Mutex
	starts  []string
	fetches map[string]int
}

func NewMockJobClient() *MockJobClient {
	return &MockJobClient{
		StartFn: func(ctx context.Context, templateID string) (*GenerationJob, error) {
			return &GenerationJob{
				JobID:      "job-" + templateID,
				TemplateID: templateID,
				Status:     JobStatusPending,
				CreatedAt:  testStart,
			}, nil
		},
		StatusFn: func(ctx context.Context, templateID, jobID string) (*GenerationJob, error) {
			return &GenerationJob{JobID: jobID, TemplateID: templateID, Status: JobStatusRunning}, nil
		},
		fetches: make(map[string]int),
	}
}

func (c *MockJobClient) StartGeneration(ctx context.Context, templateID string) (*GenerationJob, error) {
	c.mu.Lock()
	c.starts = append(c.starts, templateID)
	fn := c.StartFn
	c.mu.Unlock()
	return fn(ctx, templateID)
}

func (c *MockJobClient) FetchStatus(ctx context.Context, templateID, jobID string) (*GenerationJob, error) {
	c.mu.Lock()
	c.fetches[templateID]++
	fn := c.StatusFn
	c.mu.Unlock()
	return fn(ctx, templateID, jobID)
}

func (c *MockJobClient) Starts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.starts...)
}

func (c *MockJobClient) Fetches(templateID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches[templateID]
}

func (c *MockJobClient) TotalFetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.fetches {
		n += v
	}
	return n
}

// MockTemplateLister returns a fixed list of templates or an error.
type MockTemplateLister struct {
	Templates []Template
	Err       error
}

func (l *MockTemplateLister) ListTemplates(ctx context.Context) ([]Template, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Templates, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestClock() *clocktest.Fake {
	return clocktest.NewFake(testStart)
}

func intPtr(v int) *int {
	return &v
}

func completedJob(templateID, jobID string, count int) *GenerationJob {
	return &GenerationJob{
		JobID:               jobID,
		TemplateID:          templateID,
		Status:              JobStatusCompleted,
		GeneratedTasksCount: intPtr(count),
	}
}
