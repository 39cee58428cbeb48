package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryRepo stores entries in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Entry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Entry)}
}

// Create stores the entry.
func (r *MemoryRepo) Create(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[entry.ID] = entry
	return nil
}

// GetByID returns an entry scoped to its owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, entryID string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byID[entryID]
	if !ok || entry.CreatedBy != userID {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// ListByUser returns a user's entries, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, entry := range r.byID {
		if entry.CreatedBy == userID {
			out = append(out, entry)
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

// SearchSimilar orders a user's active embedded entries by Euclidean
// distance to the query vector, matching the Postgres `<->` operator.
func (r *MemoryRepo) SearchSimilar(ctx context.Context, userID string, queryVec []float32, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	type scored struct {
		entry Entry
		dist  float64
	}
	var candidates []scored
	for _, entry := range r.byID {
		if entry.CreatedBy != userID || entry.Status != StatusActive || len(entry.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{entry, euclidean(entry.Embedding, queryVec)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Entry, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.entry)
	}
	return out, nil
}

func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
