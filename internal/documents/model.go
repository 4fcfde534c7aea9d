package documents

import "time"

// Document statuses. Transitions move strictly forward; the only backward
// edge is failed -> pending via an explicit, bounded user retry.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusAnalyzing  = "analyzing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Failure codes recorded on a failed document. These are the only reasons
// ever shown to users; raw internal errors stay in logs.
const (
	FailureStorageUnavailable      = "STORAGE_UNAVAILABLE"
	FailureQuotaExceeded           = "QUOTA_EXCEEDED"
	FailureExtractionFailed        = "EXTRACTION_FAILED"
	FailureAnalysisRateLimited     = "ANALYSIS_RATE_LIMITED"
	FailureAnalysisInvalidResponse = "ANALYSIS_INVALID_RESPONSE"
	FailureAnalysisUnavailable     = "ANALYSIS_UNAVAILABLE"
	FailureRetryLimitExceeded      = "RETRY_LIMIT_EXCEEDED"
	FailureInternal                = "INTERNAL_ERROR"
)

// Document represents one uploaded file plus its processing state and derived
// analysis. The raw extracted text is never part of this record; only its
// length and extraction metadata survive an attempt.
type Document struct {
	ID              string
	UserID          string
	FileName        string
	DocumentType    string
	MimeType        string
	SizeBytes       int64
	StorageProvider string
	StorageKey      string

	Status         string
	FailureCode    string
	FailureMessage string
	Attempts       int

	ExtractedChars       int
	ExtractionMethod     string
	ExtractionConfidence float64

	Summary     string
	KeyFindings []string
	NextSteps   []string
	ModelID     string
	TokenCount  int

	CreatedAt           time.Time
	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
	DeletedAt           *time.Time
}

// Extraction carries the metadata a worker records when text extraction
// succeeds. The text itself stays in the worker's memory.
type Extraction struct {
	Chars      int
	Method     string
	Confidence float64
}

// Analysis is the structured output stored on completion.
type Analysis struct {
	Summary     string
	KeyFindings []string
	NextSteps   []string
	ModelID     string
	TokenCount  int
}

// Terminal reports whether a status admits no further worker transitions.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
