package pipeline

import (
	"errors"
	"time"

	"claimdocs-backend/internal/documents"
	"claimdocs-backend/internal/extract"
	"claimdocs-backend/internal/llm"
	"claimdocs-backend/internal/shared/storage/object"
)

// Class splits pipeline errors into the two behaviors that matter: retry or
// give up.
type Class int

const (
	// ClassTransient errors may succeed on a later attempt.
	ClassTransient Class = iota
	// ClassTerminal errors will fail the same way every time.
	ClassTerminal
)

// Classify buckets an error. Unknown errors count as transient since a
// retry is cheap and infrastructure blips are the common case.
func Classify(err error) Class {
	switch {
	case errors.Is(err, extract.ErrNoText),
		errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrTooManyPages),
		errors.Is(err, llm.ErrInvalidResponse),
		errors.Is(err, object.ErrNotFound):
		return ClassTerminal
	default:
		return ClassTransient
	}
}

// FailureCode maps an error to the code recorded on the failed document.
func FailureCode(err error) string {
	switch {
	case errors.Is(err, object.ErrUnavailable), errors.Is(err, object.ErrNotFound):
		return documents.FailureStorageUnavailable
	case errors.Is(err, extract.ErrNoText),
		errors.Is(err, extract.ErrUnsupportedType),
		errors.Is(err, extract.ErrTooManyPages):
		return documents.FailureExtractionFailed
	case errors.Is(err, llm.ErrRateLimited):
		return documents.FailureAnalysisRateLimited
	case errors.Is(err, llm.ErrInvalidResponse):
		return documents.FailureAnalysisInvalidResponse
	case errors.Is(err, llm.ErrUnavailable):
		return documents.FailureAnalysisUnavailable
	default:
		return documents.FailureInternal
	}
}

// Policy bounds in-process retries of transient failures within one
// pipeline run.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

const maxBackoff = 30 * time.Second

// Backoff returns the delay before retry number n (1-based), doubling each
// time up to a cap.
func (p Policy) Backoff(n int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
