package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pumpfun-sentinel/internal/domain"
	"pumpfun-sentinel/internal/storage"
)

// JobStore implements storage.JobStore using PostgreSQL.
type JobStore struct {
	pool *Pool
}

// NewJobStore creates a new JobStore.
func NewJobStore(pool *Pool) *JobStore {
	return &JobStore{pool: pool}
}

// Compile-time interface check.
var _ storage.JobStore = (*JobStore)(nil)

// CreateOrGet inserts the job for (tokenAddress, userID) if absent and
// returns the stored row either way. The unique pair index guarantees a
// job is created at most once even when two dispatch runs overlap.
func (s *JobStore) CreateOrGet(ctx context.Context, job *domain.NotificationJob) (*domain.NotificationJob, bool, error) {
	if job == nil || job.TokenAddress == "" || job.UserID == 0 {
		return nil, false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO notification_jobs (
			token_address, user_id, status, attempts, last_error,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_address, user_id) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		job.TokenAddress,
		job.UserID,
		string(job.Status),
		job.Attempts,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}

	created := tag.RowsAffected() == 1
	stored, err := s.GetByKey(ctx, job.TokenAddress, job.UserID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Update persists status, attempts and last error for an existing job.
func (s *JobStore) Update(ctx context.Context, job *domain.NotificationJob) error {
	if job == nil || job.TokenAddress == "" || job.UserID == 0 {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = $3, attempts = $4, last_error = $5, updated_at = $6
		WHERE token_address = $1 AND user_id = $2
	`,
		job.TokenAddress,
		job.UserID,
		string(job.Status),
		job.Attempts,
		job.LastError,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByKey retrieves a job by its pair key. Returns ErrNotFound if absent.
func (s *JobStore) GetByKey(ctx context.Context, tokenAddress string, userID int64) (*domain.NotificationJob, error) {
	query := `
		SELECT token_address, user_id, status, attempts, last_error,
		       created_at, updated_at
		FROM notification_jobs
		WHERE token_address = $1 AND user_id = $2
	`

	row := s.pool.QueryRow(ctx, query, tokenAddress, userID)
	job, err := scanJob(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get job by key: %w", err)
	}
	return job, nil
}

// ListByToken retrieves all jobs for a token address.
func (s *JobStore) ListByToken(ctx context.Context, tokenAddress string) ([]*domain.NotificationJob, error) {
	query := `
		SELECT token_address, user_id, status, attempts, last_error,
		       created_at, updated_at
		FROM notification_jobs
		WHERE token_address = $1
		ORDER BY user_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("list jobs by token: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListByStatus retrieves all jobs in the given status, oldest first.
func (s *JobStore) ListByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.NotificationJob, error) {
	query := `
		SELECT token_address, user_id, status, attempts, last_error,
		       created_at, updated_at
		FROM notification_jobs
		WHERE status = $1
		ORDER BY created_at ASC, user_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// scanJob scans a single row into a NotificationJob.
func scanJob(row pgx.Row) (*domain.NotificationJob, error) {
	var j domain.NotificationJob
	var status string

	err := row.Scan(
		&j.TokenAddress,
		&j.UserID,
		&status,
		&j.Attempts,
		&j.LastError,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = domain.JobStatus(status)
	return &j, nil
}

// scanJobs scans multiple rows into a slice of NotificationJob.
func scanJobs(rows pgx.Rows) ([]*domain.NotificationJob, error) {
	var jobs []*domain.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}
