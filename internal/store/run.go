package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunKind distinguishes single-template runs from batch runs.
type RunKind string

// Run kinds.
const (
	RunKindSingle RunKind = "single"
	RunKindBatch  RunKind = "batch"
)

// MaxListLimit caps ListRecentRuns.
const MaxListLimit = 100

// Run is the record of one finished generation run. Runs are history only;
// monitors never restore their state from them.
type Run struct {
	ID                  uuid.UUID
	UserID              string
	Kind                RunKind
	State               string
	Error               string
	TemplateID          string
	JobID               string
	TotalCount          int
	CompletedCount      int
	FailedCount         int
	GeneratedTasksCount int
	StartedAt           time.Time
	FinishedAt          time.Time
}

// Validate checks the invariants a stored run must satisfy.
func (r Run) Validate() error {
	var errs []error
	if r.ID == uuid.Nil {
		errs = append(errs, errors.New("id is required"))
	}
	if r.UserID == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if r.Kind != RunKindSingle && r.Kind != RunKindBatch {
		errs = append(errs, fmt.Errorf("unknown kind %q", r.Kind))
	}
	if r.State != "completed" && r.State != "failed" {
		errs = append(errs, fmt.Errorf("state %q is not terminal", r.State))
	}
	if r.Kind == RunKindSingle && r.TemplateID == "" {
		errs = append(errs, errors.New("single run requires a template id"))
	}
	if r.CompletedCount > r.TotalCount || r.FailedCount > r.CompletedCount {
		errs = append(errs, errors.New("counts are inconsistent"))
	}
	if r.FinishedAt.Before(r.StartedAt) {
		errs = append(errs, errors.New("finished before it started"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, errors.Join(errs...))
	}
	return nil
}

// RunStore persists generation run history.
type RunStore interface {
	// SaveRun stores a finished run.
	SaveRun(ctx context.Context, run Run) error

	// ListRecentRuns returns the user's runs, most recently finished first.
	// limit is clamped to [1, MaxListLimit].
	ListRecentRuns(ctx context.Context, userID string, limit int) ([]Run, error)
}

// ClampLimit applies the ListRecentRuns bounds.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 20
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
