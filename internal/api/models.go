package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/store"
)

// JobResponse describes one remote generation job.
type JobResponse struct {
	JobID               string     `json:"job_id"`
	TemplateID          string     `json:"template_id"`
	Status              string     `json:"status"`
	Completed           bool       `json:"completed"`
	GeneratedTasksCount *int       `json:"generated_tasks_count,omitempty"`
	Error               string     `json:"error,omitempty"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// SingleStatusResponse is the state of the caller's single-template monitor.
type SingleStatusResponse struct {
	State               string     `json:"state"`
	Error               string     `json:"error,omitempty"`
	GeneratedTasksCount int        `json:"generated_tasks_count"`
	TemplateID          string     `json:"template_id,omitempty"`
	JobID               string     `json:"job_id,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
}

// BatchEntryResponse is one template's job within a batch.
type BatchEntryResponse struct {
	TemplateID string      `json:"template_id"`
	Title      string      `json:"title"`
	Job        JobResponse `json:"job"`
}

// BatchStatusResponse is the state of the caller's batch monitor.
type BatchStatusResponse struct {
	State          string               `json:"state"`
	Error          string               `json:"error,omitempty"`
	CompletedCount int                  `json:"completed_count"`
	TotalCount     int                  `json:"total_count"`
	StartedAt      *time.Time           `json:"started_at,omitempty"`
	Entries        []BatchEntryResponse `json:"entries"`
}

// StatusResponse combines both monitors.
type StatusResponse struct {
	Single SingleStatusResponse `json:"single"`
	Batch  BatchStatusResponse  `json:"batch"`
}

// RunResponse is one finished run from the history.
type RunResponse struct {
	ID                  uuid.UUID `json:"id"`
	Kind                string    `json:"kind"`
	State               string    `json:"state"`
	Error               string    `json:"error,omitempty"`
	TemplateID          string    `json:"template_id,omitempty"`
	JobID               string    `json:"job_id,omitempty"`
	TotalCount          int       `json:"total_count"`
	CompletedCount      int       `json:"completed_count"`
	FailedCount         int       `json:"failed_count"`
	GeneratedTasksCount int       `json:"generated_tasks_count"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

// HistoryResponse lists recent runs, most recent first.
type HistoryResponse struct {
	Runs []RunResponse `json:"runs"`
}

// HistoryQuery holds the validated query parameters of the history endpoint.
type HistoryQuery struct {
	Limit int `validate:"min=1,max=100"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func jobToResponse(j generation.GenerationJob) JobResponse {
	return JobResponse{
		JobID:               j.JobID,
		TemplateID:          j.TemplateID,
		Status:              string(j.Status),
		Completed:           j.Completed(),
		GeneratedTasksCount: j.GeneratedTasksCount,
		Error:               j.ErrorMessage,
		CreatedAt:           optionalTime(j.CreatedAt),
		CompletedAt:         j.CompletedAt,
	}
}

func singleToResponse(s generation.SingleSnapshot) SingleStatusResponse {
	return SingleStatusResponse{
		State:               string(s.State),
		Error:               s.Error,
		GeneratedTasksCount: s.GeneratedTasksCount,
		TemplateID:          s.TemplateID,
		JobID:               s.JobID,
		StartedAt:           optionalTime(s.StartedAt),
	}
}

func batchToResponse(s generation.BatchSnapshot) BatchStatusResponse {
	entries := make([]BatchEntryResponse, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, BatchEntryResponse{
			TemplateID: e.TemplateID,
			Title:      e.Title,
			Job:        jobToResponse(e.Job),
		})
	}
	return BatchStatusResponse{
		State:          string(s.State),
		Error:          s.Error,
		CompletedCount: s.CompletedCount,
		TotalCount:     s.TotalCount,
		StartedAt:      optionalTime(s.StartedAt),
		Entries:        entries,
	}
}

func runsToResponse(runs []store.Run) HistoryResponse {
	resp := HistoryResponse{Runs: make([]RunResponse, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, RunResponse{
			ID:                  r.ID,
			Kind:                string(r.Kind),
			State:               r.State,
			Error:               r.Error,
			TemplateID:          r.TemplateID,
			JobID:               r.JobID,
			TotalCount:          r.TotalCount,
			CompletedCount:      r.CompletedCount,
			FailedCount:         r.FailedCount,
			GeneratedTasksCount: r.GeneratedTasksCount,
			StartedAt:           r.StartedAt,
			FinishedAt:          r.FinishedAt,
		})
	}
	return resp
}
