package knowledge

import "context"

// Repo defines persistence operations for knowledge entries.
type Repo interface {
	Create(ctx context.Context, entry Entry) error
	GetByID(ctx context.Context, userID, entryID string) (Entry, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error)
	SearchSimilar(ctx context.Context, userID string, queryVec []float32, limit int) ([]Entry, error)
}
