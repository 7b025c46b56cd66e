package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/habits-api/internal/events"
	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/platform/clock"
	"github.com/phrazzld/habits-api/internal/platform/logger"
	"github.com/phrazzld/habits-api/internal/redact"
	"github.com/phrazzld/habits-api/internal/service/auth"
	"github.com/phrazzld/habits-api/internal/store"
)

// emitTimeout bounds the delivery of one event to all handlers.
const emitTimeout = 5 * time.Second

// SessionConfig holds the timing parameters of generation sessions.
type SessionConfig struct {
	// Monitor is passed to every SingleMonitor and BatchMonitor.
	Monitor generation.Config

	// SessionTTL is how long a session may go unused before it is reaped.
	// Sessions with a run in progress are never reaped.
	SessionTTL time.Duration

	// ReapInterval is how often RunReaper looks for idle sessions.
	ReapInterval time.Duration
}

// DefaultSessionConfig returns a SessionConfig with reasonable defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Monitor:      generation.DefaultConfig(),
		SessionTTL:   30 * time.Minute,
		ReapInterval: time.Minute,
	}
}

// Status combines the snapshots of a user's two monitors.
type Status struct {
	Single generation.SingleSnapshot
	Batch  generation.BatchSnapshot
}

// GenerationService manages per-user generation sessions.
type GenerationService interface {
	// GenerateForTemplate starts a single-template run for the caller and
	// returns the monitor's snapshot right after the launch settled.
	GenerateForTemplate(ctx context.Context, p auth.Principal, templateID string) (generation.SingleSnapshot, error)

	// GenerateAll starts a batch run over the caller's active templates.
	GenerateAll(ctx context.Context, p auth.Principal) (generation.BatchSnapshot, error)

	// Status returns both snapshots. Users without a session are idle.
	Status(userID string) Status

	// ResetSingle returns the user's single monitor to idle.
	ResetSingle(userID string)

	// ResetBatch returns the user's batch monitor to idle.
	ResetBatch(userID string)

	// EndSession tears the user's session down, cancelling every timer it
	// owns. It reports whether a session existed.
	EndSession(userID string) bool

	// History lists the user's most recently finished runs.
	History(ctx context.Context, userID string, limit int) ([]store.Run, error)

	// ReapIdle tears down sessions idle for longer than the session TTL and
	// returns how many were removed.
	ReapIdle() int

	// RunReaper calls ReapIdle every ReapInterval until ctx is done.
	RunReaper(ctx context.Context) error

	// ActiveSessions returns the number of live sessions.
	ActiveSessions() int

	// Shutdown tears down every session and rejects later runs.
	Shutdown()
}

type generationService struct {
	upstream UpstreamFactory
	emitter  events.EventEmitter
	runs     store.RunStore
	clock    clock.Clock
	config   SessionConfig
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewGenerationService creates a GenerationService.
// It returns an error if any of the required dependencies are nil.
// runs may be nil, in which case History returns ErrHistoryDisabled.
func NewGenerationService(
	upstream UpstreamFactory,
	emitter events.EventEmitter,
	runs store.RunStore,
	c clock.Clock,
	config SessionConfig,
	logger *slog.Logger,
) (GenerationService, error) {
	if upstream == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "upstream factory cannot be nil"}
	}
	if emitter == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := DefaultSessionConfig()
	if config.SessionTTL <= 0 {
		config.SessionTTL = d.SessionTTL
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = d.ReapInterval
	}

	return &generationService{
		upstream: upstream,
		emitter:  emitter,
		runs:     runs,
		clock:    c,
		config:   config,
		logger:   logger.With("component", "generation_service"),
		sessions: make(map[string]*session),
	}, nil
}

// acquire returns the caller's session, creating it when needed, and
// records the caller's latest token and activity time.
func (s *generationService) acquire(p auth.Principal) (*session, error) {
	if p.UserID == "" {
		return nil, ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrShuttingDown
	}

	sess, ok := s.sessions[p.UserID]
	if !ok {
		client := newSessionClient(s.upstream, p.Token)
		log := s.logger.With("user_id", p.UserID)
		sess = &session{
			userID: p.UserID,
			client: client,
			single: generation.NewSingleMonitor(client, s.clock, s.config.Monitor, log),
			batch:  generation.NewBatchMonitor(client, client, s.clock, s.config.Monitor, log),
		}
		s.sessions[p.UserID] = sess
		s.logger.Debug("generation session created", "user_id", p.UserID)
	} else {
		sess.client.setToken(p.Token)
	}
	sess.lastSeen = s.clock.Now()
	return sess, nil
}

// lookup returns the user's session without creating one.
func (s *generationService) lookup(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	sess.lastSeen = s.clock.Now()
	return sess
}

// withSession runs fn against the caller's session. A session torn down
// between lookup and use is replaced once.
func (s *generationService) withSession(p auth.Principal, fn func(*session) error) error {
	for attempt := 0; ; attempt++ {
		sess, err := s.acquire(p)
		if err != nil {
			return err
		}
		err = fn(sess)
		if errors.Is(err, generation.ErrMonitorClosed) && attempt == 0 {
			continue
		}
		return err
	}
}

// GenerateForTemplate starts a single-template run for the caller.
func (s *generationService) GenerateForTemplate(
	ctx context.Context,
	p auth.Principal,
	templateID string,
) (generation.SingleSnapshot, error) {
	var snap generation.SingleSnapshot
	err := s.withSession(p, func(sess *session) error {
		userID := sess.userID
		err := sess.single.GenerateTasks(ctx, templateID, generation.SingleHooks{
			OnFinish: func(fin generation.SingleSnapshot) {
				s.emit(events.TypeSingleFinished, userID, fin.TemplateID, "",
					summarizeSingle(fin, s.clock.Now()))
			},
		})
		snap = sess.single.Snapshot()
		return err
	})
	if err != nil {
		s.logger.Warn("single generation not started",
			"user_id", p.UserID,
			"template_id", templateID,
			"error", redact.Error(err))
	}
	return snap, err
}

// GenerateAll starts a batch run over the caller's active templates.
func (s *generationService) GenerateAll(ctx context.Context, p auth.Principal) (generation.BatchSnapshot, error) {
	var snap generation.BatchSnapshot
	err := s.withSession(p, func(sess *session) error {
		err := sess.batch.GenerateAllActiveTasks(ctx, s.batchHooks(sess.userID))
		snap = sess.batch.Snapshot()
		return err
	})
	if err != nil {
		s.logger.Warn("batch generation not started",
			"user_id", p.UserID,
			"error", redact.Error(err))
	}
	return snap, err
}

func (s *generationService) batchHooks(userID string) generation.BatchHooks {
	return generation.BatchHooks{
		OnTaskComplete: func(templateID, title string) {
			s.emit(events.TypeJobCompleted, userID, templateID, title, nil)
		},
		OnAllComplete: func() {
			s.emit(events.TypeBatchCompleted, userID, "", "", nil)
		},
		OnFinish: func(fin generation.BatchSnapshot) {
			s.emit(events.TypeBatchFinished, userID, "", "", summarizeBatch(fin, s.clock.Now()))
		},
	}
}

// emit delivers one event. Hooks run on timer goroutines, so delivery gets
// its own bounded context rather than a request's.
func (s *generationService) emit(eventType, userID, templateID, title string, payload any) {
	event, err := events.NewEvent(eventType, userID, payload)
	if err != nil {
		s.logger.Error("failed to create generation event",
			"event_type", eventType,
			"user_id", userID,
			"error", err)
		return
	}
	event.TemplateID = templateID
	event.Title = title

	ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), s.logger), emitTimeout)
	defer cancel()

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Warn("failed to deliver generation event",
			"event_type", eventType,
			"event_id", event.ID,
			"user_id", userID,
			"error", redact.Error(err))
		return
	}
	s.logger.Debug("generation event emitted",
		"event_type", eventType,
		"event_id", event.ID,
		"user_id", userID)
}

// Status returns both snapshots for userID.
func (s *generationService) Status(userID string) Status {
	sess := s.lookup(userID)
	if sess == nil {
		return Status{
			Single: generation.SingleSnapshot{State: generation.StateIdle},
			Batch:  generation.BatchSnapshot{State: generation.StateIdle, Entries: []generation.BatchEntry{}},
		}
	}
	return Status{Single: sess.single.Snapshot(), Batch: sess.batch.Snapshot()}
}

// ResetSingle returns the user's single monitor to idle.
func (s *generationService) ResetSingle(userID string) {
	if sess := s.lookup(userID); sess != nil {
		sess.single.Reset()
		s.logger.Info("single generation reset", "user_id", userID)
	}
}

// ResetBatch returns the user's batch monitor to idle.
func (s *generationService) ResetBatch(userID string) {
	if sess := s.lookup(userID); sess != nil {
		sess.batch.Reset()
		s.logger.Info("batch generation reset", "user_id", userID)
	}
}

// EndSession tears the user's session down.
func (s *generationService) EndSession(userID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()

	if !ok {
		return false
	}
	sess.close()
	s.logger.Info("generation session ended", "user_id", userID)
	return true
}

// History lists the user's most recently finished runs.
func (s *generationService) History(ctx context.Context, userID string, limit int) ([]store.Run, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	runs, err := s.runs.ListRecentRuns(ctx, userID, store.ClampLimit(limit))
	if err != nil {
		s.logger.Error("failed to list generation runs",
			"user_id", userID,
			"error", redact.Error(err))
		return nil, &ServiceError{Operation: "history", Message: "failed to list runs", Err: err}
	}
	return runs, nil
}

// ReapIdle tears down sessions idle for longer than the session TTL.
func (s *generationService) ReapIdle() int {
	now := s.clock.Now()

	s.mu.Lock()
	var idle []*session
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) <= s.config.SessionTTL || sess.busy() {
			continue
		}
		idle = append(idle, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.close()
		s.logger.Debug("idle generation session reaped", "user_id", sess.userID)
	}
	return len(idle)
}

// RunReaper periodically reaps idle sessions until ctx is cancelled. The
// interval is measured on the service clock, starting after each sweep.
func (s *generationService) RunReaper(ctx context.Context) error {
	due := make(chan struct{}, 1)
	schedule := func() clock.Timer {
		return s.clock.AfterFunc(s.config.ReapInterval, func() {
			select {
			case due <- struct{}{}:
			default:
			}
		})
	}
	timer := schedule()
	defer func() { timer.Stop() }()

	s.logger.Info("session reaper started",
		"interval", s.config.ReapInterval,
		"session_ttl", s.config.SessionTTL)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session reaper stopped")
			return nil
		case <-due:
			if n := s.ReapIdle(); n > 0 {
				s.logger.Info("reaped idle generation sessions",
					"count", n,
					"active_sessions", s.ActiveSessions())
			}
			timer = schedule()
		}
	}
}

// ActiveSessions returns the number of live sessions.
func (s *generationService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown tears down every session and rejects later runs.
func (s *generationService) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.closed = true
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	s.logger.Info("generation service shut down", "closed_sessions", len(sessions))
}
