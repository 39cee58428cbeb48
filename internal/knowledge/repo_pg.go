package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/pgvector/pgvector-go"
)

// PGRepo implements Repo using Postgres with the pgvector extension.
type PGRepo struct {
	DB *sql.DB
}

const entryColumns = `
id, title, content, content_type, source_url, language, embedding,
confidence, array_to_json(keywords), metadata, created_by, status, created_at, updated_at`

// Create inserts a new knowledge entry.
func (r *PGRepo) Create(ctx context.Context, entry Entry) error {
	const query = `
INSERT INTO knowledge_entries (
	id, title, content, content_type, source_url, language, embedding,
	confidence, keywords, metadata, created_by, status, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	confidence, err := json.Marshal(entry.Confidence)
	if err != nil {
		return err
	}
	metadata, err := marshalJSONB(entry.Metadata)
	if err != nil {
		return err
	}
	var embedding any
	if len(entry.Embedding) > 0 {
		embedding = pgvector.NewVector(entry.Embedding)
	}
	var sourceURL any
	if entry.SourceURL != "" {
		sourceURL = entry.SourceURL
	}
	keywords := entry.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	_, err = r.DB.ExecContext(ctx, query,
		entry.ID,
		entry.Title,
		entry.Content,
		entry.ContentType,
		sourceURL,
		entry.Language,
		embedding,
		confidence,
		keywords,
		metadata,
		entry.CreatedBy,
		entry.Status,
		entry.CreatedAt,
	)
	return err
}

// GetByID returns an entry scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, entryID string) (Entry, error) {
	query := `
SELECT ` + entryColumns + `
FROM knowledge_entries
WHERE id = $1 AND created_by = $2
LIMIT 1`
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, query, entryID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// ListByUser returns a user's entries, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	query := `
SELECT ` + entryColumns + `
FROM knowledge_entries
WHERE created_by = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// SearchSimilar returns a user's entries ordered by vector distance to
// the query embedding. Entries without an embedding are excluded.
func (r *PGRepo) SearchSimilar(ctx context.Context, userID string, queryVec []float32, limit int) ([]Entry, error) {
	query := `
SELECT ` + entryColumns + `
FROM knowledge_entries
WHERE created_by = $1 AND embedding IS NOT NULL AND status = $2
ORDER BY embedding <-> $3
LIMIT $4`
	rows, err := r.DB.QueryContext(ctx, query, userID, StatusActive, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var sourceURL sql.NullString
	var embeddingRaw sql.Null[pgvector.Vector]
	var confidence []byte
	var keywords sql.NullString
	var metadata []byte
	if err := row.Scan(
		&entry.ID,
		&entry.Title,
		&entry.Content,
		&entry.ContentType,
		&sourceURL,
		&entry.Language,
		&embeddingRaw,
		&confidence,
		&keywords,
		&metadata,
		&entry.CreatedBy,
		&entry.Status,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return Entry{}, err
	}
	if sourceURL.Valid {
		entry.SourceURL = sourceURL.String
	}
	if embeddingRaw.Valid {
		entry.Embedding = embeddingRaw.V.Slice()
	}
	if len(confidence) > 0 {
		if err := json.Unmarshal(confidence, &entry.Confidence); err != nil {
			entry.Confidence = Confidence{}
		}
	}
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &entry.Keywords); err != nil {
			entry.Keywords = nil
		}
	}
	if len(metadata) > 0 {
		entry.Metadata = map[string]any{}
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			entry.Metadata = nil
		}
	}
	return entry, nil
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func marshalJSONB(payload map[string]any) (any, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}
