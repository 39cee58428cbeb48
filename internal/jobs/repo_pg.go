package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new processing job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO processing_jobs (
	id, user_id, file_name, file_size_bytes, source_url, status, started_at, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var sourceURL any
	if job.SourceURL != "" {
		sourceURL = job.SourceURL
	}
	_, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.FileName,
		job.FileSizeBytes,
		sourceURL,
		job.Status,
		job.StartedAt,
		job.CreatedAt,
	)
	return err
}

// GetByID returns a job scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, jobID string) (Job, error) {
	const query = `
SELECT id, user_id, file_name, file_size_bytes, source_url, knowledge_entry_id,
       status, error_message, processing_time_ms, started_at, completed_at, created_at, updated_at
FROM processing_jobs
WHERE id = $1 AND user_id = $2
LIMIT 1`
	var job Job
	var sourceURL sql.NullString
	var knowledgeEntryID sql.NullString
	var errorMessage sql.NullString
	var processingTimeMs sql.NullInt64
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, jobID, userID).Scan(
		&job.ID,
		&job.UserID,
		&job.FileName,
		&job.FileSizeBytes,
		&sourceURL,
		&knowledgeEntryID,
		&job.Status,
		&errorMessage,
		&processingTimeMs,
		&job.StartedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	if sourceURL.Valid {
		job.SourceURL = sourceURL.String
	}
	if knowledgeEntryID.Valid {
		job.KnowledgeEntryID = knowledgeEntryID.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if processingTimeMs.Valid {
		job.ProcessingTimeMs = processingTimeMs.Int64
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

// MarkCompleted terminates a job successfully and links its knowledge entry.
func (r *PGRepo) MarkCompleted(ctx context.Context, jobID, knowledgeEntryID string, processingTimeMs int64, completedAt time.Time) error {
	const query = `
UPDATE processing_jobs
SET status = $1,
    knowledge_entry_id = $2,
    processing_time_ms = $3,
    completed_at = $4,
    updated_at = now()
WHERE id = $5`
	res, err := r.DB.ExecContext(ctx, query, StatusCompleted, knowledgeEntryID, processingTimeMs, completedAt, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed terminates a job with a sanitized error message.
func (r *PGRepo) MarkFailed(ctx context.Context, jobID, errorMessage string, processingTimeMs int64, completedAt time.Time) error {
	const query = `
UPDATE processing_jobs
SET status = $1,
    error_message = $2,
    processing_time_ms = $3,
    completed_at = $4,
    updated_at = now()
WHERE id = $5`
	res, err := r.DB.ExecContext(ctx, query, StatusFailed, errorMessage, processingTimeMs, completedAt, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns a user's jobs, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	const query = `
SELECT id, user_id, file_name, file_size_bytes, source_url, knowledge_entry_id,
       status, error_message, processing_time_ms, started_at, completed_at, created_at, updated_at
FROM processing_jobs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var job Job
		var sourceURL sql.NullString
		var knowledgeEntryID sql.NullString
		var errorMessage sql.NullString
		var processingTimeMs sql.NullInt64
		var completedAt sql.NullTime
		if err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.FileName,
			&job.FileSizeBytes,
			&sourceURL,
			&knowledgeEntryID,
			&job.Status,
			&errorMessage,
			&processingTimeMs,
			&job.StartedAt,
			&completedAt,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if sourceURL.Valid {
			job.SourceURL = sourceURL.String
		}
		if knowledgeEntryID.Valid {
			job.KnowledgeEntryID = knowledgeEntryID.String
		}
		if errorMessage.Valid {
			job.ErrorMessage = &errorMessage.String
		}
		if processingTimeMs.Valid {
			job.ProcessingTimeMs = processingTimeMs.Int64
		}
		if completedAt.Valid {
			job.CompletedAt = &completedAt.Time
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
