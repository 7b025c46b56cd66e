package generation

import (
	"context"
	"time"
)

// JobStatus is the remote-reported status of a generation job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationJob is a handle to one remote background job.
type GenerationJob struct {
	JobID      string
	TemplateID string
	Status     JobStatus

	// GeneratedTasksCount is only set when Status is completed.
	GeneratedTasksCount *int

	// ErrorMessage is only set when Status is failed.
	ErrorMessage string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Completed reports whether the job reached a terminal status.
func (j GenerationJob) Completed() bool {
	return j.Status.Terminal()
}

// TasksCount returns the generated task count, or zero when absent.
func (j GenerationJob) TasksCount() int {
	if j.GeneratedTasksCount == nil {
		return 0
	}
	return *j.GeneratedTasksCount
}

// normalize coerces unknown statuses to failed and drops fields that are not
// meaningful for the job's status.
func (j *GenerationJob) normalize() {
	if !j.Status.Valid() {
		j.Status = JobStatusFailed
	}
	if j.Status != JobStatusCompleted {
		j.GeneratedTasksCount = nil
	}
	switch {
	case j.Status != JobStatusFailed:
		j.ErrorMessage = ""
	case j.ErrorMessage == "":
		j.ErrorMessage = ErrJobFailed.Error()
	}
}

// Template is the subset of a routine-task template the orchestrator uses.
type Template struct {
	ID       string
	Title    string
	IsActive bool
}

// JobClient is the boundary to the remote job API.
type JobClient interface {
	// StartGeneration launches a generation job for one template.
	StartGeneration(ctx context.Context, templateID string) (*GenerationJob, error)

	// FetchStatus returns the current state of a previously launched job.
	FetchStatus(ctx context.Context, templateID, jobID string) (*GenerationJob, error)
}

// TemplateLister lists the caller's routine-task templates.
type TemplateLister interface {
	ListTemplates(ctx context.Context) ([]Template, error)
}
