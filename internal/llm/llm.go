package llm

import (
	"context"
	"errors"
)

// Classified errors for analysis calls. The pipeline maps these to retry
// behavior and user-facing failure codes.
var (
	ErrRateLimited     = errors.New("analysis provider rate limited")
	ErrUnavailable     = errors.New("analysis provider unavailable")
	ErrInvalidResponse = errors.New("analysis response unusable")
)

// AnalyzeInput is the extracted text and the user's declared document type.
// Text is already truncated by the caller; clients send it as-is.
type AnalyzeInput struct {
	Text         string
	DocumentType string
	FileName     string
}

// Result is the structured analysis of one document.
type Result struct {
	Summary     string
	KeyFindings []string
	NextSteps   []string
	ModelID     string
	TokenCount  int
}

// Client analyzes document text with a language model.
type Client interface {
	Analyze(ctx context.Context, in AnalyzeInput) (Result, error)
}
