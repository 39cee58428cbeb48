package knowledge

import "time"

// Entry statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Confidence captures per-stage quality scores for a processed document.
// Overall is a weighted blend of the stage scores.
type Confidence struct {
	Conversion      float64 `json:"conversion"`
	TextExtraction  float64 `json:"textExtraction"`
	ImageProcessing float64 `json:"imageProcessing"`
	Overall         float64 `json:"overall"`
}

// Entry is one document in the knowledge base: cleaned content, its
// embedding vector, and provenance metadata.
type Entry struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	ContentType string         `json:"contentType"`
	SourceURL   string         `json:"sourceUrl,omitempty"`
	Language    string         `json:"language"`
	Embedding   []float32      `json:"-"`
	Confidence  Confidence     `json:"confidence"`
	Keywords    []string       `json:"keywords"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedBy   string         `json:"createdBy"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
