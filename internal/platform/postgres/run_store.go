package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/habits-api/internal/platform/logger"
	"github.com/phrazzld/habits-api/internal/store"
)

// DefaultRunsPerUser is how many runs SaveRun keeps per user.
const DefaultRunsPerUser = 200

// PostgresRunStore implements store.RunStore on the generation_runs table.
type PostgresRunStore struct {
	db          *sql.DB
	runsPerUser int
}

var _ store.RunStore = (*PostgresRunStore)(nil)

// NewPostgresRunStore creates a run store that retains at most runsPerUser
// runs per user. Values below 1 select DefaultRunsPerUser.
func NewPostgresRunStore(db *sql.DB, runsPerUser int) *PostgresRunStore {
	if runsPerUser < 1 {
		runsPerUser = DefaultRunsPerUser
	}
	return &PostgresRunStore{db: db, runsPerUser: runsPerUser}
}

const insertRunQuery = `
	INSERT INTO generation_runs (
		id, user_id, kind, state, error_message, template_id, job_id,
		total_count, completed_count, failed_count, generated_tasks_count,
		started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const pruneRunsQuery = `
	DELETE FROM generation_runs
	WHERE user_id = $1
	  AND id NOT IN (
		SELECT id FROM generation_runs
		WHERE user_id = $1
		ORDER BY finished_at DESC
		LIMIT $2
	  )
`

// SaveRun validates and inserts run, then prunes the user's history down to
// the retention limit, all in one transaction.
func (s *PostgresRunStore) SaveRun(ctx context.Context, run store.Run) error {
	log := logger.FromContext(ctx)

	if err := run.Validate(); err != nil {
		return err
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, pruneRunsQuery, run.UserID, s.runsPerUser); err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save generation run",
			"run_id", run.ID,
			"user_id", run.UserID,
			"kind", run.Kind,
			"error", err)
		return store.NewStoreError("generation_run", "save", MapError(err))
	}

	log.Debug("generation run saved",
		"run_id", run.ID,
		"user_id", run.UserID,
		"kind", run.Kind,
		"state", run.State)
	return nil
}

func insertRun(ctx context.Context, db store.DBTX, run store.Run) error {
	_, err := db.ExecContext(ctx, insertRunQuery,
		run.ID,
		run.UserID,
		string(run.Kind),
		run.State,
		run.Error,
		run.TemplateID,
		run.JobID,
		run.TotalCount,
		run.CompletedCount,
		run.FailedCount,
		run.GeneratedTasksCount,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
	)
	return err
}

const listRunsQuery = `
	SELECT id, user_id, kind, state, error_message, template_id, job_id,
	       total_count, completed_count, failed_count, generated_tasks_count,
	       started_at, finished_at
	FROM generation_runs
	WHERE user_id = $1
	ORDER BY finished_at DESC
	LIMIT $2
`

// ListRecentRuns returns the user's most recently finished runs.
func (s *PostgresRunStore) ListRecentRuns(ctx context.Context, userID string, limit int) ([]store.Run, error) {
	rows, err := s.db.QueryContext(ctx, listRunsQuery, userID, store.ClampLimit(limit))
	if err != nil {
		logger.FromContext(ctx).Error("failed to list generation runs",
			"user_id", userID,
			"error", err)
		return nil, store.NewStoreError("generation_run", "list", MapError(err))
	}
	defer rows.Close()

	runs := make([]store.Run, 0)
	for rows.Next() {
		var (
			r    store.Run
			kind string
		)
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&kind,
			&r.State,
			&r.Error,
			&r.TemplateID,
			&r.JobID,
			&r.TotalCount,
			&r.CompletedCount,
			&r.FailedCount,
			&r.GeneratedTasksCount,
			&r.StartedAt,
			&r.FinishedAt,
		); err != nil {
			return nil, store.NewStoreError("generation_run", "scan", err)
		}
		r.Kind = store.RunKind(kind)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("generation_run", "list", err)
	}
	return runs, nil
}
