package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_job_store.go -package=mocks dpia-ai/internal/storage JobStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// JobStore defines the interface for job record operations.
type JobStore interface {
	// Create inserts a new job record.
	Create(ctx context.Context, job *JobRecord) error
	// Get returns a job by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*JobRecord, error)
	// Transition moves a job to state "to" only if its current state is one of "from".
	// It reports whether the record changed.
	Transition(ctx context.Context, id string, from []string, to, result, errMsg string) (bool, error)
	// FailUnfinished marks every job still in one of states as failed with errMsg.
	FailUnfinished(ctx context.Context, states []string, failed, errMsg string) (int64, error)
}

// JobRepo provides methods for job operations.
// It implements the JobStore interface.
type JobRepo struct {
	db *sql.DB
}

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

// Create inserts a new job record.
func (r *JobRepo) Create(ctx context.Context, job *JobRecord) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO jobs (id, kind, state, payload, result, error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		job.ID, job.Kind, job.State, job.Payload, job.Result, job.Error, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

// Get returns a job by ID. Returns ErrNotFound if not found.
func (r *JobRepo) Get(ctx context.Context, id string) (*JobRecord, error) {
	var job JobRecord
	var result, errMsg sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT id, kind, state, payload, result, error, created_at, updated_at FROM jobs WHERE id = ?",
		id,
	).Scan(&job.ID, &job.Kind, &job.State, &job.Payload, &result, &errMsg, &job.CreatedAt, &job.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}

	job.Result = result.String
	job.Error = errMsg.String
	return &job, nil
}

// Transition moves a job to state "to" only if its current state is one of "from".
func (r *JobRepo) Transition(ctx context.Context, id string, from []string, to, result, errMsg string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition requires at least one source state")
	}

	query := fmt.Sprintf(
		"UPDATE jobs SET state = ?, result = ?, error = ?, updated_at = ? WHERE id = ? AND state IN (%s)",
		placeholders(len(from)))
	args := []any{to, result, errMsg, time.Now().UTC(), id}
	args = append(args, stringArgs(from)...)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update job state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// FailUnfinished marks every job still in one of states as failed.
// Used at startup for jobs whose worker died with the previous process.
func (r *JobRepo) FailUnfinished(ctx context.Context, states []string, failed, errMsg string) (int64, error) {
	if len(states) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(
		"UPDATE jobs SET state = ?, error = ?, updated_at = ? WHERE state IN (%s)",
		placeholders(len(states)))
	args := []any{failed, errMsg, time.Now().UTC()}
	args = append(args, stringArgs(states)...)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to fail unfinished jobs: %w", err)
	}
	return res.RowsAffected()
}
