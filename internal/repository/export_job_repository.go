package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// ExportJobRepository provides database access for asynchronous export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository creates a new instance of ExportJobRepository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a new pending export job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ExportJobPending
	}
	const query = `INSERT INTO export_jobs (id, user_id, format, start_date, end_date, status, result_path, error_message, created_at, completed_at)
		VALUES (:id, :user_id, :format, :start_date, :end_date, :status, :result_path, :error_message, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID returns an export job by identifier.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, user_id, format, start_date, end_date, status, result_path, error_message, created_at, completed_at FROM export_jobs WHERE id = $1 LIMIT 1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// ListByUser returns the most recent export jobs for a user.
func (r *ExportJobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, user_id, format, start_date, end_date, status, result_path, error_message, created_at, completed_at
		FROM export_jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}

// MarkRunning transitions a job to running.
func (r *ExportJobRepository) MarkRunning(ctx context.Context, id string) error {
	const query = `UPDATE export_jobs SET status = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, models.ExportJobRunning)
	return err
}

// MarkCompleted transitions a job to completed, recording its result path.
func (r *ExportJobRepository) MarkCompleted(ctx context.Context, id, resultPath string) error {
	const query = `UPDATE export_jobs SET status = $2, result_path = $3, completed_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, models.ExportJobCompleted, resultPath, time.Now().UTC())
	return err
}

// MarkFailed transitions a job to failed, recording the error.
func (r *ExportJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE export_jobs SET status = $2, error_message = $3, completed_at = $4 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, models.ExportJobFailed, message, time.Now().UTC())
	return err
}
