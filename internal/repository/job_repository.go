// internal/repository/job_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"escpos-service/internal/database"
	"escpos-service/internal/model"
)

const jobColumns = `
	id, label, source, source_type, payload, payload_encoding, size_bytes,
	code_page, command_count, status, metadata, received_at, created_at, updated_at`

// jobRepository implements JobRepository on PostgreSQL
type jobRepository struct {
	db       *database.DB
	compress bool
	logger   *zap.Logger
}

// NewJobRepository creates a new PostgreSQL job repository
func NewJobRepository(db *database.DB, compress bool, logger *zap.Logger) JobRepository {
	return &jobRepository{
		db:       db,
		compress: compress,
		logger:   logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *jobRepository) scanJob(row rowScanner) (*model.PrintJob, error) {
	job := &model.PrintJob{}
	var (
		stored   []byte
		encoding string
	)
	err := row.Scan(
		&job.ID, &job.Label, &job.Source, &job.SourceType, &stored, &encoding,
		&job.SizeBytes, &job.CodePage, &job.CommandCount, &job.Status,
		&job.Metadata, &job.ReceivedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Payload, err = decodePayload(stored, encoding, job.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	return job, nil
}

// Create creates a new job
func (r *jobRepository) Create(ctx context.Context, job *model.PrintJob) error {
	query := `
		INSERT INTO print_jobs (
			id, label, source, source_type, payload, payload_encoding, size_bytes,
			code_page, command_count, status, metadata, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	stored, encoding := encodePayload(job.Payload, r.compress)
	err := r.db.QueryRowContext(ctx, query,
		job.ID, job.Label, job.Source, job.SourceType, stored, encoding,
		len(job.Payload), job.CodePage, job.CommandCount, job.Status,
		job.Metadata, job.ReceivedAt,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to create job", zap.Error(err))
		return fmt.Errorf("failed to create job: %w", err)
	}

	job.SizeBytes = len(job.Payload)
	return nil
}

// GetByID retrieves a job by ID
func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = $1`

	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// Update updates the decode results of an existing job
func (r *jobRepository) Update(ctx context.Context, job *model.PrintJob) error {
	query := `
		UPDATE print_jobs SET
			label = $2, code_page = $3, command_count = $4, status = $5,
			metadata = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		job.ID, job.Label, job.CodePage, job.CommandCount, job.Status, job.Metadata,
	).Scan(&job.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
		}
		return fmt.Errorf("failed to update job: %w", err)
	}

	return nil
}

// Delete removes a job
func (r *jobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM print_jobs WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return nil
}

// List retrieves jobs with filtering and pagination
func (r *jobRepository) List(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error) {
	if filter == nil {
		filter = &model.JobFilter{}
	}

	// Build WHERE clause
	whereConditions := []string{}
	args := []any{}
	argIndex := 1

	if filter.SourceType != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("source_type = $%d", argIndex))
		args = append(args, *filter.SourceType)
		argIndex++
	}

	if filter.Since != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("received_at >= $%d", argIndex))
		args = append(args, *filter.Since)
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	// Count total records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM print_jobs %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	// LIMIT ALL when no limit is requested
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM print_jobs %s
		ORDER BY received_at ASC, created_at ASC
		LIMIT $%d OFFSET $%d
	`, jobColumns, whereClause, argIndex, argIndex+1)

	args = append(args, limit, max(filter.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := r.collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

type jobRows interface {
	rowScanner
	Next() bool
	Err() error
}

// collectJobs scans every row. One unreadable row fails the whole page.
func (r *jobRepository) collectJobs(rows jobRows) ([]*model.PrintJob, error) {
	jobs := []*model.PrintJob{}
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			r.logger.Error("Failed to scan job row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

// Count returns the number of stored jobs
func (r *jobRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM print_jobs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// DeleteAll removes every job
func (r *jobRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM print_jobs`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", err)
	}
	return result.RowsAffected()
}

// DeleteOlderThan removes jobs received before cutoff
func (r *jobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM print_jobs WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	return result.RowsAffected()
}

// TrimToCount drops the oldest jobs until at most maxJobs remain
func (r *jobRepository) TrimToCount(ctx context.Context, maxJobs int) (int64, error) {
	query := `
		DELETE FROM print_jobs WHERE id IN (
			SELECT id FROM print_jobs
			ORDER BY received_at DESC, created_at DESC
			OFFSET $1
		)
	`

	result, err := r.db.ExecContext(ctx, query, max(maxJobs, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to trim jobs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if deleted > 0 {
		r.logger.Debug("Trimmed job history", zap.Int64("deleted", deleted), zap.Int("kept", maxJobs))
	}
	return deleted, nil
}
