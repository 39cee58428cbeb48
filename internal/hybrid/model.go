package hybrid

// Request intent types.
const (
	TypeMaterialAnalysis = "material_analysis"
	TypeGeneration       = "generation"
	TypeTextProcessing   = "text_processing"
	TypeGeneral          = "general"
)

// Defaults applied when the caller leaves budget fields unset.
const (
	DefaultMaxRetries   = 2
	DefaultMinimumScore = 0.7
)

// Request describes one dispatch: an intent type plus an optional prompt
// and image reference, with caller-tunable retry and score budgets.
type Request struct {
	Prompt       string  `json:"prompt"`
	Type         string  `json:"type"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	MaxRetries   int     `json:"maxRetries,omitempty"`
	MinimumScore float64 `json:"minimumScore,omitempty"`
}

// Attempt records one try of one provider.
type Attempt struct {
	Provider         string  `json:"provider"`
	Success          bool    `json:"success"`
	Score            float64 `json:"score"`
	Error            string  `json:"error,omitempty"`
	ProcessingTimeMs int64   `json:"processingTimeMs"`
}

// Response is the dispatch outcome. Failure is encoded here, never
// raised: an all-failed dispatch has Success false, a zero score, and an
// attempt ledger documenting every provider's failure.
type Response struct {
	Success     bool      `json:"success"`
	Provider    string    `json:"provider,omitempty"`
	Result      any       `json:"result,omitempty"`
	Score       float64   `json:"score"`
	Attempts    []Attempt `json:"attempts"`
	TotalTimeMs int64     `json:"totalTimeMs"`
}
