package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gopost/publisher/internal/domain"
)

// jobColumns is the column list for SELECT on publish_jobs, single source
// for schema changes.
const jobColumns = `id, bundle_id, platform, mode, requested_datetime, state,
	result, error_info, attempt_count, created_at, updated_at`

// JobRepository persists publish jobs in PostgreSQL. It implements the
// orchestrator's JobStore.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// jobRow is the scan target; result and error travel as JSONB.
type jobRow struct {
	ID                string    `db:"id"`
	BundleID          string    `db:"bundle_id"`
	Platform          string    `db:"platform"`
	Mode              string    `db:"mode"`
	RequestedDatetime string    `db:"requested_datetime"`
	State             string    `db:"state"`
	Result            []byte    `db:"result"`
	ErrorInfo         []byte    `db:"error_info"`
	AttemptCount      int       `db:"attempt_count"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func toRow(job *domain.PublishJob) (*jobRow, error) {
	row := &jobRow{
		ID:                job.ID,
		BundleID:          job.BundleID,
		Platform:          string(job.Platform),
		Mode:              string(job.Mode),
		RequestedDatetime: job.RequestedDatetime,
		State:             string(job.State),
		AttemptCount:      job.AttemptCount,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal job result: %w", err)
		}
		row.Result = data
	}
	if job.Error != nil {
		data, err := json.Marshal(job.Error)
		if err != nil {
			return nil, fmt.Errorf("marshal job error: %w", err)
		}
		row.ErrorInfo = data
	}
	return row, nil
}

func (r *jobRow) toJob() (*domain.PublishJob, error) {
	job := &domain.PublishJob{
		ID:                r.ID,
		BundleID:          r.BundleID,
		Platform:          domain.Platform(r.Platform),
		Mode:              domain.PublishMode(r.Mode),
		RequestedDatetime: r.RequestedDatetime,
		State:             domain.JobState(r.State),
		AttemptCount:      r.AttemptCount,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if len(r.Result) > 0 {
		job.Result = &domain.PlatformPostRef{}
		if err := json.Unmarshal(r.Result, job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
	}
	if len(r.ErrorInfo) > 0 {
		job.Error = &domain.JobError{}
		if err := json.Unmarshal(r.ErrorInfo, job.Error); err != nil {
			return nil, fmt.Errorf("unmarshal job error: %w", err)
		}
	}
	return job, nil
}

// Insert stores a new job.
func (r *JobRepository) Insert(ctx context.Context, job *domain.PublishJob) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO publish_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		row.ID, row.BundleID, row.Platform, row.Mode, row.RequestedDatetime,
		row.State, row.Result, row.ErrorInfo, row.AttemptCount,
		row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update rewrites a job's mutable fields. Unknown ids return
// domain.ErrNotFound.
func (r *JobRepository) Update(ctx context.Context, job *domain.PublishJob) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE publish_jobs
		SET mode = $2, state = $3, result = $4, error_info = $5,
		    attempt_count = $6, updated_at = $7
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		row.ID, row.Mode, row.State, row.Result, row.ErrorInfo,
		row.AttemptCount, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves one job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.PublishJob, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM publish_jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return row.toJob()
}

// List returns recent jobs, newest first.
func (r *JobRepository) List(ctx context.Context, limit int) ([]*domain.PublishJob, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []jobRow
	query := `SELECT ` + jobColumns + ` FROM publish_jobs ORDER BY created_at DESC, id DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*domain.PublishJob, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
