package jobs

import "time"

// Job statuses. A job starts in processing and ends in exactly one of
// completed or failed.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job represents one document processing run.
type Job struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	FileName         string     `json:"fileName"`
	FileSizeBytes    int64      `json:"fileSizeBytes"`
	SourceURL        string     `json:"sourceUrl,omitempty"`
	KnowledgeEntryID string     `json:"knowledgeEntryId,omitempty"`
	Status           string     `json:"status"`
	ErrorMessage     *string    `json:"errorMessage,omitempty"`
	ProcessingTimeMs int64      `json:"processingTimeMs"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}
