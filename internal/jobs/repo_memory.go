package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	return nil
}

// GetByID returns a job scoped to its owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok || job.UserID != userID {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// MarkCompleted terminates a job successfully and links its knowledge entry.
func (r *MemoryRepo) MarkCompleted(ctx context.Context, jobID, knowledgeEntryID string, processingTimeMs int64, completedAt time.Time) error {
	return r.finish(ctx, jobID, func(job *Job) {
		job.Status = StatusCompleted
		job.KnowledgeEntryID = knowledgeEntryID
	}, processingTimeMs, completedAt)
}

// MarkFailed terminates a job with an error message.
func (r *MemoryRepo) MarkFailed(ctx context.Context, jobID, errorMessage string, processingTimeMs int64, completedAt time.Time) error {
	return r.finish(ctx, jobID, func(job *Job) {
		job.Status = StatusFailed
		job.ErrorMessage = &errorMessage
	}, processingTimeMs, completedAt)
}

func (r *MemoryRepo) finish(ctx context.Context, jobID string, mutate func(*Job), processingTimeMs int64, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	mutate(&job)
	job.ProcessingTimeMs = processingTimeMs
	job.CompletedAt = &completedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// ListByUser returns a user's jobs, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Job
	for _, job := range r.byID {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
