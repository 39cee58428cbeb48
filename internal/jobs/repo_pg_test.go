package jobs

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
	job := Job{
		ID:            "job-1",
		UserID:        "user-1",
		FileName:      "handbook.pdf",
		FileSizeBytes: 204800,
		Status:        StatusProcessing,
		StartedAt:     time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO processing_jobs").
		WithArgs(
			job.ID,
			job.UserID,
			job.FileName,
			job.FileSizeBytes,
			nil, // source_url omitted for direct uploads
			job.Status,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDScopesToOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "file_name", "file_size_bytes", "source_url", "knowledge_entry_id",
		"status", "error_message", "processing_time_ms", "started_at", "completed_at", "created_at", "updated_at",
	}).AddRow("job-1", "user-1", "handbook.pdf", int64(204800), nil, "entry-1",
		StatusCompleted, nil, int64(5230), now, now, now, now)

	mock.ExpectQuery("SELECT (.+) FROM processing_jobs").
		WithArgs("job-1", "user-1").
		WillReturnRows(rows)

	job, err := repo.GetByID(context.Background(), "user-1", "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if job.KnowledgeEntryID != "entry-1" {
		t.Fatalf("knowledgeEntryID = %q", job.KnowledgeEntryID)
	}
	if job.ProcessingTimeMs != 5230 {
		t.Fatalf("processingTimeMs = %d", job.ProcessingTimeMs)
	}
	if job.CompletedAt == nil {
		t.Fatal("completedAt not populated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkFailedMissingJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("UPDATE processing_jobs").
		WithArgs(StatusFailed, "conversion failed", int64(1200), sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkFailed(context.Background(), "missing", "conversion failed", 1200, time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestMemoryRepoLifecycle(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	job := Job{ID: "job-1", UserID: "user-1", FileName: "doc.pdf", Status: StatusProcessing, StartedAt: now, CreatedAt: now}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.GetByID(ctx, "other-user", "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user read err = %v, want ErrNotFound", err)
	}

	if err := repo.MarkCompleted(ctx, "job-1", "entry-1", 4321, now.Add(5*time.Second)); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	got, err := repo.GetByID(ctx, "user-1", "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusCompleted || got.KnowledgeEntryID != "entry-1" || got.ProcessingTimeMs != 4321 {
		t.Fatalf("completed job = %+v", got)
	}
}
