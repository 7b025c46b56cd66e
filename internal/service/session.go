package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/phrazzld/habits-api/internal/generation"
)

// Upstream is the remote routine-task API as seen by one caller.
type Upstream interface {
	generation.JobClient
	generation.TemplateLister
}

// UpstreamFactory returns an Upstream that authenticates with token.
type UpstreamFactory func(token string) Upstream

// sessionClient forwards monitor calls to the upstream API using the most
// recent bearer token presented by the session's user. Tokens expire during
// long sessions, so polls always pick up the latest one.
type sessionClient struct {
	factory UpstreamFactory
	token   atomic.Pointer[string]
}

func newSessionClient(factory UpstreamFactory, token string) *sessionClient {
	c := &sessionClient{factory: factory}
	c.setToken(token)
	return c
}

func (c *sessionClient) setToken(token string) {
	if token == "" {
		return
	}
	c.token.Store(&token)
}

func (c *sessionClient) current() Upstream {
	var token string
	if p := c.token.Load(); p != nil {
		token = *p
	}
	return c.factory(token)
}

func (c *sessionClient) StartGeneration(ctx context.Context, templateID string) (*generation.GenerationJob, error) {
	return c.current().StartGeneration(ctx, templateID)
}

func (c *sessionClient) FetchStatus(ctx context.Context, templateID, jobID string) (*generation.GenerationJob, error) {
	return c.current().FetchStatus(ctx, templateID, jobID)
}

func (c *sessionClient) ListTemplates(ctx context.Context) ([]generation.Template, error) {
	return c.current().ListTemplates(ctx)
}

// session is one user's generation context.
type session struct {
	userID   string
	client   *sessionClient
	single   *generation.SingleMonitor
	batch    *generation.BatchMonitor
	lastSeen time.Time
}

// busy reports whether either monitor is tracking a run.
func (s *session) busy() bool {
	return s.single.Snapshot().State == generation.StateGenerating ||
		s.batch.Snapshot().State == generation.StateGenerating
}

// close tears down both monitors, cancelling every timer they own.
func (s *session) close() {
	s.single.Close()
	s.batch.Close()
}
