package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReportStore defines the interface for completed report operations.
type ReportStore interface {
	// Create inserts a report. The ID must be set.
	Create(ctx context.Context, report *ReportRecord) error
	// GetByJob returns the report produced by a job. Returns ErrNotFound if not found.
	GetByJob(ctx context.Context, jobID string) (*ReportRecord, error)
}

// ReportRepo provides methods for report operations.
// It implements the ReportStore interface.
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo creates a new ReportRepo.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create inserts a report.
func (r *ReportRepo) Create(ctx context.Context, report *ReportRecord) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO reports (id, job_id, owner_id, container_id, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		report.ID, report.JobID, report.OwnerID, report.ContainerID, report.Title, report.Body, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	report.CreatedAt = now
	return nil
}

// GetByJob returns the report produced by a job.
func (r *ReportRepo) GetByJob(ctx context.Context, jobID string) (*ReportRecord, error) {
	var rep ReportRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, job_id, owner_id, container_id, title, body, created_at FROM reports WHERE job_id = ?",
		jobID,
	).Scan(&rep.ID, &rep.JobID, &rep.OwnerID, &rep.ContainerID, &rep.Title, &rep.Body, &rep.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	return &rep, nil
}
