package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/habits-api/internal/events"
	"github.com/phrazzld/habits-api/internal/store"
)

// HistoryRecorder stores finished runs. It handles single_finished and
// batch_finished events and ignores everything else.
type HistoryRecorder struct {
	runs   store.RunStore
	logger *slog.Logger
}

// NewHistoryRecorder creates a HistoryRecorder writing to runs.
func NewHistoryRecorder(runs store.RunStore, logger *slog.Logger) *HistoryRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryRecorder{
		runs:   runs,
		logger: logger.With("component", "history_recorder"),
	}
}

// HandleEvent implements events.EventHandler.
func (h *HistoryRecorder) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeSingleFinished && event.Type != events.TypeBatchFinished {
		return nil
	}

	var summary RunSummary
	if err := event.UnmarshalPayload(&summary); err != nil {
		h.logger.Error("failed to decode run summary",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		return fmt.Errorf("failed to decode run summary: %w", err)
	}

	run := summary.Run(event.UserID)
	if err := h.runs.SaveRun(ctx, run); err != nil {
		h.logger.Error("failed to record generation run",
			"event_id", event.ID,
			"run_id", run.ID,
			"user_id", run.UserID,
			"error", err)
		return fmt.Errorf("failed to record generation run: %w", err)
	}

	h.logger.Debug("generation run recorded",
		"run_id", run.ID,
		"user_id", run.UserID,
		"kind", run.Kind,
		"state", run.State)
	return nil
}
