package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	entry := Entry{
		ID:          "entry-1",
		Title:       "handbook",
		Content:     "<html><body>hello</body></html>",
		ContentType: "pdf-document",
		SourceURL:   "https://files.example.com/u1/handbook.html",
		Language:    "en",
		Embedding:   []float32{0.1, 0.2, 0.3},
		Confidence:  ComputeConfidence(true),
		Keywords:    []string{"handbook", "policies"},
		Metadata:    map[string]any{"images_found": 2},
		CreatedBy:   "user-1",
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO knowledge_entries").
		WithArgs(
			entry.ID,
			entry.Title,
			entry.Content,
			entry.ContentType,
			entry.SourceURL,
			entry.Language,
			sqlmock.AnyArg(), // embedding vector
			sqlmock.AnyArg(), // confidence jsonb
			sqlmock.AnyArg(), // keywords array
			sqlmock.AnyArg(), // metadata jsonb
			entry.CreatedBy,
			entry.Status,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "title", "content", "content_type", "source_url", "language", "embedding",
		"confidence", "keywords", "metadata", "created_by", "status", "created_at", "updated_at",
	}).AddRow(
		"entry-1", "handbook", "<p>hi</p>", "pdf-document", nil, "en", "[0.1,0.2]",
		[]byte(`{"conversion":0.9,"textExtraction":0.85,"imageProcessing":0.8,"overall":0.865}`),
		`["handbook","policies"]`,
		[]byte(`{"images_found":2}`),
		"user-1", StatusActive, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM knowledge_entries").
		WithArgs("entry-1", "user-1").
		WillReturnRows(rows)

	entry, err := repo.GetByID(context.Background(), "user-1", "entry-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(entry.Embedding) != 2 {
		t.Fatalf("embedding dims = %d, want 2", len(entry.Embedding))
	}
	if entry.Confidence.Conversion != 0.9 {
		t.Fatalf("confidence = %+v", entry.Confidence)
	}
	if len(entry.Keywords) != 2 || entry.Keywords[0] != "handbook" {
		t.Fatalf("keywords = %v", entry.Keywords)
	}
	if entry.Metadata["images_found"] != float64(2) {
		t.Fatalf("metadata = %v", entry.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT (.+) FROM knowledge_entries").
		WithArgs("missing", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepoSearchSimilarOrdersByDistance(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(id string, vec []float32) Entry {
		return Entry{ID: id, CreatedBy: "user-1", Status: StatusActive, Embedding: vec, CreatedAt: now}
	}
	for _, entry := range []Entry{
		mk("far", []float32{10, 10}),
		mk("near", []float32{1, 1}),
		mk("mid", []float32{3, 3}),
		{ID: "no-embedding", CreatedBy: "user-1", Status: StatusActive, CreatedAt: now},
		mk("other-user", []float32{1, 1}),
	} {
		if entry.ID == "other-user" {
			entry.CreatedBy = "user-2"
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.SearchSimilar(ctx, "user-1", []float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(got) != 2 || got[0].ID != "near" || got[1].ID != "mid" {
		ids := make([]string, len(got))
		for i, e := range got {
			ids[i] = e.ID
		}
		t.Fatalf("order = %v, want [near mid]", ids)
	}
}
