package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/phrazzld/habits-api/internal/platform/clock"
)

// BatchEntry wraps one job of a batch together with its template title.
type BatchEntry struct {
	TemplateID string
	Title      string
	Job        GenerationJob
}

// Completed reports whether the entry's job is terminal.
func (e BatchEntry) Completed() bool {
	return e.Job.Completed()
}

// BatchSnapshot is the observable state of a BatchMonitor.
type BatchSnapshot struct {
	State          State
	Error          string
	CompletedCount int
	TotalCount     int
	StartedAt      time.Time
	Entries        []BatchEntry
}

// BatchHooks are optional callbacks for a batch run.
type BatchHooks struct {
	// OnTaskComplete fires once per entry, on the tick where its job is first
	// observed terminal.
	OnTaskComplete func(templateID, title string)

	// OnAllComplete fires once per successful run: immediately when there are
	// no active templates, otherwise CompletionDelay after the last job finished.
	// Starting a new run during the delay fires it early; Reset and Close
	// cancel it.
	OnAllComplete func()

	// OnFinish fires once when the run reaches completed or failed.
	OnFinish func(BatchSnapshot)
}

// BatchMonitor launches generation for every active template and tracks
// all resulting jobs on one shared poll timer and one deadline.
type BatchMonitor struct {
	jobs      JobClient
	templates TemplateLister
	clock     clock.Clock
	config    Config
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	err       string
	completed int
	total     int
	startedAt time.Time
	entries   []*BatchEntry
	current   *run
	hooks     BatchHooks
	notifier  clock.Timer
	closed    bool
}

// NewBatchMonitor creates an idle BatchMonitor.
func NewBatchMonitor(
	jobs JobClient,
	templates TemplateLister,
	c clock.Clock,
	config Config,
	logger *slog.Logger,
) *BatchMonitor {
	return &BatchMonitor{
		jobs:      jobs,
		templates: templates,
		clock:     c,
		config:    config.withDefaults(),
		logger:    logger.With("component", "batch_job_monitor"),
		state:     StateIdle,
	}
}

type launchResult struct {
	entry *BatchEntry
	err   error
}

type statusResult struct {
	index int
	job   *GenerationJob
	err   error
}

type pendingJob struct {
	index      int
	templateID string
	jobID      string
}

// GenerateAllActiveTasks starts one generation job per active template and
// tracks them to completion.
//
// Launch failures for individual templates are recorded as failed entries
// and do not abort the batch. The call returns once every launch attempt has
// settled; progress is then reported through Snapshot and hooks.
func (m *BatchMonitor) GenerateAllActiveTasks(ctx context.Context, hooks BatchHooks) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.state == StateGenerating {
		m.mu.Unlock()
		return ErrAlreadyGenerating
	}
	// A completion notification still waiting out its delay belongs to the
	// previous run; deliver it now rather than dropping it.
	var pending func()
	if m.notifier != nil {
		pending = m.hooks.OnAllComplete
	}
	m.discardLocked()
	r := newRun(ctx)
	m.current = r
	m.hooks = hooks
	m.state = StateGenerating
	m.startedAt = m.clock.Now()
	m.mu.Unlock()

	if pending != nil {
		pending()
	}

	templates, err := m.templates.ListTemplates(r.ctx)

	m.mu.Lock()
	if m.current != r {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.logger.Error("failed to list routine templates", "error", err)
		m.failLocked(err.Error())
		snap := m.snapshotLocked()
		m.mu.Unlock()
		notify(hooks.OnFinish, snap)
		return fmt.Errorf("%w: %w", ErrTemplateListFailed, err)
	}

	active := make([]Template, 0, len(templates))
	for _, t := range templates {
		if t.IsActive {
			active = append(active, t)
		}
	}

	if len(active) == 0 {
		m.state = StateCompleted
		m.current.cleanup()
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Info("no active routine templates, nothing to generate")
		if hooks.OnAllComplete != nil {
			hooks.OnAllComplete()
		}
		notify(hooks.OnFinish, snap)
		return nil
	}

	m.total = len(active)
	m.mu.Unlock()

	launches := iter.Map(active, func(t *Template) launchResult {
		return m.launch(r.ctx, *t)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != r {
		return nil
	}

	failed := 0
	m.entries = make([]*BatchEntry, 0, len(launches))
	for _, l := range launches {
		if l.err != nil {
			failed++
		}
		m.entries = append(m.entries, l.entry)
	}
	m.completed = m.countCompletedLocked()

	r.poller = startPoller(m.clock, m.config.PollInterval, m.config.Timeout,
		func() { m.tick(r) },
		func() { m.expire(r) },
	)

	m.logger.Info("batch generation started",
		"total_count", m.total,
		"launch_failures", failed)
	return nil
}

func (m *BatchMonitor) launch(ctx context.Context, t Template) launchResult {
	entry := &BatchEntry{TemplateID: t.ID, Title: t.Title}

	job, err := m.jobs.StartGeneration(ctx, t.ID)
	if err == nil && (job == nil || job.JobID == "") {
		err = errMissingJobID
	}
	if err != nil {
		m.logger.Warn("failed to start generation job for template",
			"template_id", t.ID,
			"error", err)
		entry.Job = GenerationJob{
			TemplateID:   t.ID,
			Status:       JobStatusFailed,
			ErrorMessage: err.Error(),
			CreatedAt:    m.clock.Now(),
		}
		return launchResult{entry: entry, err: err}
	}

	entry.Job = *job
	entry.Job.TemplateID = t.ID
	// Launch responses are never terminal; the first tick observes the outcome.
	if entry.Job.Status != JobStatusRunning {
		entry.Job.Status = JobStatusPending
	}
	return launchResult{entry: entry}
}

func (m *BatchMonitor) tick(r *run) {
	m.mu.Lock()
	if m.current != r || m.state != StateGenerating {
		m.mu.Unlock()
		return
	}
	pending := make([]pendingJob, 0, len(m.entries))
	for i, e := range m.entries {
		if !e.Completed() {
			pending = append(pending, pendingJob{index: i, templateID: e.TemplateID, jobID: e.Job.JobID})
		}
	}
	m.mu.Unlock()

	results := iter.Map(pending, func(p *pendingJob) statusResult {
		job, err := m.jobs.FetchStatus(r.ctx, p.templateID, p.jobID)
		if err == nil && job == nil {
			err = errEmptyStatus
		}
		return statusResult{index: p.index, job: job, err: err}
	})

	m.mu.Lock()
	if m.current != r || m.state != StateGenerating {
		m.mu.Unlock()
		return
	}

	var finished []BatchEntry
	for _, res := range results {
		entry := m.entries[res.index]
		if res.err != nil {
			m.logger.Warn("failed to fetch job status, retrying next tick",
				"template_id", entry.TemplateID,
				"job_id", entry.Job.JobID,
				"error", res.err)
			continue
		}
		if entry.Completed() {
			continue
		}

		job := *res.job
		job.normalize()
		job.JobID = entry.Job.JobID
		job.TemplateID = entry.TemplateID
		if job.CreatedAt.IsZero() {
			job.CreatedAt = entry.Job.CreatedAt
		}
		entry.Job = job

		if entry.Completed() {
			finished = append(finished, *entry)
		}
	}

	m.completed = m.countCompletedLocked()
	hooks := m.hooks
	done := m.completed == m.total
	var snap BatchSnapshot
	if done {
		m.state = StateCompleted
		m.current.cleanup()
		if hooks.OnAllComplete != nil {
			m.notifier = m.clock.AfterFunc(m.config.CompletionDelay, func() { m.allComplete(r) })
		}
		snap = m.snapshotLocked()
		m.logger.Info("batch generation completed",
			"total_count", m.total,
			"failed_count", m.countFailedLocked())
	}
	m.mu.Unlock()

	if hooks.OnTaskComplete != nil {
		for _, e := range finished {
			hooks.OnTaskComplete(e.TemplateID, e.Title)
		}
	}
	if done {
		notify(hooks.OnFinish, snap)
	}
}

func (m *BatchMonitor) allComplete(r *run) {
	m.mu.Lock()
	if m.current != r {
		m.mu.Unlock()
		return
	}
	m.notifier = nil
	fn := m.hooks.OnAllComplete
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (m *BatchMonitor) expire(r *run) {
	m.mu.Lock()
	if m.current != r || m.state != StateGenerating {
		m.mu.Unlock()
		return
	}
	m.logger.Warn("batch generation timed out",
		"completed_count", m.completed,
		"total_count", m.total,
		"timeout", m.config.Timeout)
	m.failLocked(fmt.Sprintf("%s after %s", ErrTimeout, m.config.Timeout))
	snap, fin := m.snapshotLocked(), m.hooks.OnFinish
	m.mu.Unlock()
	notify(fin, snap)
}

func (m *BatchMonitor) failLocked(msg string) {
	m.state = StateFailed
	m.err = msg
	m.current.cleanup()
}

func (m *BatchMonitor) countCompletedLocked() int {
	n := 0
	for _, e := range m.entries {
		if e.Completed() {
			n++
		}
	}
	return n
}

func (m *BatchMonitor) countFailedLocked() int {
	n := 0
	for _, e := range m.entries {
		if e.Job.Status == JobStatusFailed {
			n++
		}
	}
	return n
}

// Reset cancels the shared timer, the deadline and any pending completion
// notification, discards all entries and returns the monitor to idle.
// Results of remote calls still in flight are ignored when they arrive.
func (m *BatchMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardLocked()
}

// Close tears the monitor down. Timers are cancelled and later runs are rejected.
func (m *BatchMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardLocked()
	m.closed = true
}

func (m *BatchMonitor) discardLocked() {
	m.current.cleanup()
	if m.notifier != nil {
		m.notifier.Stop()
		m.notifier = nil
	}
	m.current = nil
	m.hooks = BatchHooks{}
	m.state = StateIdle
	m.err = ""
	m.completed = 0
	m.total = 0
	m.startedAt = time.Time{}
	m.entries = nil
}

// Snapshot returns the current observable state, including a copy of every entry.
func (m *BatchMonitor) Snapshot() BatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *BatchMonitor) snapshotLocked() BatchSnapshot {
	entries := make([]BatchEntry, len(m.entries))
	for i, e := range m.entries {
		entries[i] = *e
	}
	return BatchSnapshot{
		State:          m.state,
		Error:          m.err,
		CompletedCount: m.completed,
		TotalCount:     m.total,
		StartedAt:      m.startedAt,
		Entries:        entries,
	}
}
