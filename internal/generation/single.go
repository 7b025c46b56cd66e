package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/habits-api/internal/platform/clock"
)

// SingleSnapshot is the observable state of a SingleMonitor.
type SingleSnapshot struct {
	State               State
	Error               string
	GeneratedTasksCount int
	TemplateID          string
	JobID               string
	StartedAt           time.Time
}

// SingleHooks are optional callbacks for a single-job run.
type SingleHooks struct {
	// OnFinish fires once when the run reaches completed or failed.
	OnFinish func(SingleSnapshot)
}

// SingleMonitor drives exactly one generation job to a terminal state.
type SingleMonitor struct {
	client JobClient
	clock  clock.Clock
	config Config
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	err        string
	count      int
	templateID string
	jobID      string
	startedAt  time.Time
	current    *run
	hooks      SingleHooks
	closed     bool
}

// NewSingleMonitor creates an idle SingleMonitor.
func NewSingleMonitor(client JobClient, c clock.Clock, config Config, logger *slog.Logger) *SingleMonitor {
	return &SingleMonitor{
		client: client,
		clock:  c,
		config: config.withDefaults(),
		logger: logger.With("component", "single_job_monitor"),
		state:  StateIdle,
	}
}

// GenerateTasks launches a generation job for templateID and starts polling it.
//
// It returns ErrAlreadyGenerating if a run is in progress. A launch failure
// moves the monitor to failed and is also returned wrapped in ErrLaunchFailed;
// no polling starts in that case. Everything after a successful launch is
// reported only through Snapshot and hooks.
func (m *SingleMonitor) GenerateTasks(ctx context.Context, templateID string, hooks SingleHooks) error {
	if templateID == "" {
		return ErrInvalidTemplateID
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.state == StateGenerating {
		m.mu.Unlock()
		return ErrAlreadyGenerating
	}
	m.current.cleanup()
	r := newRun(ctx)
	m.current = r
	m.hooks = hooks
	m.state = StateGenerating
	m.err = ""
	m.count = 0
	m.templateID = templateID
	m.jobID = ""
	m.startedAt = m.clock.Now()
	m.mu.Unlock()

	job, err := m.client.StartGeneration(r.ctx, templateID)
	if err == nil && (job == nil || job.JobID == "") {
		err = errMissingJobID
	}

	m.mu.Lock()
	if m.current != r {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.logger.Error("failed to start generation job",
			"template_id", templateID,
			"error", err)
		m.failLocked(err.Error())
		snap, fin := m.snapshotLocked(), m.hooks.OnFinish
		m.mu.Unlock()
		notify(fin, snap)
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	m.jobID = job.JobID
	r.poller = startPoller(m.clock, m.config.PollInterval, m.config.Timeout,
		func() { m.tick(r) },
		func() { m.expire(r) },
	)
	m.mu.Unlock()

	m.logger.Info("generation job started",
		"template_id", templateID,
		"job_id", job.JobID)
	return nil
}

func (m *SingleMonitor) tick(r *run) {
	m.mu.Lock()
	if m.current != r || m.state != StateGenerating {
		m.mu.Unlock()
		return
	}
	templateID, jobID := m.templateID, m.jobID
	m.mu.Unlock()

	job, err := m.client.FetchStatus(r.ctx, templateID, jobID)
	if err == nil && job == nil {
		err = errEmptyStatus
	}

	m.mu.Lock()
	if m.current != r || m.state != StateGenerating {
		m.mu.Unlock()
		return
	}

	if err != nil {
		m.logger.Error("failed to fetch generation job status",
			"template_id", templateID,
			"job_id", jobID,
			"error", err)
		m.failLocked(err.Error())
	} else {
		job.normalize()
		switch job.Status {
		case JobStatusCompleted:
			m.state = StateCompleted
			m.count = job.TasksCount()
			m.current.cleanup()
			m.logger.Info("generation job completed",
				"template_id", templateID,
				"job_id", jobID,
				"generated_tasks_count", m.count)
		case JobStatusFailed:
			m.logger.Warn("generation job failed",
				"template_id", templateID,
				"job_id", jobID,
				"error", job.ErrorMessage)
			m.failLocked(job.ErrorMessage)
		default:
			m.mu.Unlock()
			return
		}
	}

	snap, fin := m.snapshotLocked(), m.hooks.OnFinish
	m.mu.Unlock()
	notify(fin, snap)
}

func (m *SingleMonitor) expire(r *run) {
	m.mu.Lock()
	if m.current != r || m.state != StateGenerating {
		m.mu.Unlock()
		return
	}
	m.logger.Warn("generation job timed out",
		"template_id", m.templateID,
		"job_id", m.jobID,
		"timeout", m.config.Timeout)
	m.failLocked(fmt.Sprintf("%s after %s", ErrTimeout, m.config.Timeout))
	snap, fin := m.snapshotLocked(), m.hooks.OnFinish
	m.mu.Unlock()
	notify(fin, snap)
}

func (m *SingleMonitor) failLocked(msg string) {
	if msg == "" {
		msg = ErrJobFailed.Error()
	}
	m.state = StateFailed
	m.err = msg
	m.current.cleanup()
}

// Reset cancels any active polling and returns the monitor to idle.
// It is safe to call at any time, including mid-poll.
func (m *SingleMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Close tears the monitor down. Timers are cancelled and later runs are rejected.
func (m *SingleMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.closed = true
}

func (m *SingleMonitor) resetLocked() {
	m.current.cleanup()
	m.current = nil
	m.hooks = SingleHooks{}
	m.state = StateIdle
	m.err = ""
	m.count = 0
	m.templateID = ""
	m.jobID = ""
	m.startedAt = time.Time{}
}

// Snapshot returns the current observable state.
func (m *SingleMonitor) Snapshot() SingleSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *SingleMonitor) snapshotLocked() SingleSnapshot {
	return SingleSnapshot{
		State:               m.state,
		Error:               m.err,
		GeneratedTasksCount: m.count,
		TemplateID:          m.templateID,
		JobID:               m.jobID,
		StartedAt:           m.startedAt,
	}
}

func notify[T any](fn func(T), v T) {
	if fn != nil {
		fn(v)
	}
}
