package jobs

import (
	"context"
	"time"
)

// Repo defines persistence operations for processing jobs.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, userID, jobID string) (Job, error)
	MarkCompleted(ctx context.Context, jobID, knowledgeEntryID string, processingTimeMs int64, completedAt time.Time) error
	MarkFailed(ctx context.Context, jobID, errorMessage string, processingTimeMs int64, completedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error)
}
