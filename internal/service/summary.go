package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/store"
)

// RunSummary is the payload of single_finished and batch_finished events.
type RunSummary struct {
	ID                  uuid.UUID     `json:"id"`
	Kind                store.RunKind `json:"kind"`
	State               string        `json:"state"`
	Error               string        `json:"error,omitempty"`
	TemplateID          string        `json:"template_id,omitempty"`
	JobID               string        `json:"job_id,omitempty"`
	TotalCount          int           `json:"total_count"`
	CompletedCount      int           `json:"completed_count"`
	FailedCount         int           `json:"failed_count"`
	GeneratedTasksCount int           `json:"generated_tasks_count"`
	StartedAt           time.Time     `json:"started_at"`
	FinishedAt          time.Time     `json:"finished_at"`
}

// Run converts the summary into a history record owned by userID.
func (s RunSummary) Run(userID string) store.Run {
	return store.Run{
		ID:                  s.ID,
		UserID:              userID,
		Kind:                s.Kind,
		State:               s.State,
		Error:               s.Error,
		TemplateID:          s.TemplateID,
		JobID:               s.JobID,
		TotalCount:          s.TotalCount,
		CompletedCount:      s.CompletedCount,
		FailedCount:         s.FailedCount,
		GeneratedTasksCount: s.GeneratedTasksCount,
		StartedAt:           s.StartedAt,
		FinishedAt:          s.FinishedAt,
	}
}

func summarizeSingle(snap generation.SingleSnapshot, finishedAt time.Time) RunSummary {
	sum := RunSummary{
		ID:                  uuid.New(),
		Kind:                store.RunKindSingle,
		State:               string(snap.State),
		Error:               snap.Error,
		TemplateID:          snap.TemplateID,
		JobID:               snap.JobID,
		TotalCount:          1,
		CompletedCount:      1,
		GeneratedTasksCount: snap.GeneratedTasksCount,
		StartedAt:           snap.StartedAt,
		FinishedAt:          finishedAt,
	}
	if snap.State == generation.StateFailed {
		sum.FailedCount = 1
	}
	return sum
}

func summarizeBatch(snap generation.BatchSnapshot, finishedAt time.Time) RunSummary {
	sum := RunSummary{
		ID:             uuid.New(),
		Kind:           store.RunKindBatch,
		State:          string(snap.State),
		Error:          snap.Error,
		TotalCount:     snap.TotalCount,
		CompletedCount: snap.CompletedCount,
		StartedAt:      snap.StartedAt,
		FinishedAt:     finishedAt,
	}
	for _, e := range snap.Entries {
		if e.Job.Status == generation.JobStatusFailed {
			sum.FailedCount++
		}
		sum.GeneratedTasksCount += e.Job.TasksCount()
	}
	return sum
}
