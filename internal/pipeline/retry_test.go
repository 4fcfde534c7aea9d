package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"claimdocs-backend/internal/documents"
	"claimdocs-backend/internal/extract"
	"claimdocs-backend/internal/llm"
	"claimdocs-backend/internal/shared/storage/object"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{llm.ErrRateLimited, ClassTransient},
		{llm.ErrUnavailable, ClassTransient},
		{llm.ErrInvalidResponse, ClassTerminal},
		{extract.ErrNoText, ClassTerminal},
		{extract.ErrUnsupportedType, ClassTerminal},
		{extract.ErrTooManyPages, ClassTerminal},
		{object.ErrUnavailable, ClassTransient},
		{object.ErrNotFound, ClassTerminal},
		{errors.New("socket reset"), ClassTransient},
		{fmt.Errorf("analyze: %w", llm.ErrInvalidResponse), ClassTerminal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestFailureCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{object.ErrUnavailable, documents.FailureStorageUnavailable},
		{extract.ErrNoText, documents.FailureExtractionFailed},
		{llm.ErrRateLimited, documents.FailureAnalysisRateLimited},
		{llm.ErrInvalidResponse, documents.FailureAnalysisInvalidResponse},
		{llm.ErrUnavailable, documents.FailureAnalysisUnavailable},
		{errors.New("who knows"), documents.FailureInternal},
	}
	for _, tc := range cases {
		if got := FailureCode(tc.err); got != tc.want {
			t.Errorf("FailureCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	p := Policy{MaxRetries: 10, BaseDelay: time.Second}
	if d := p.Backoff(1); d != time.Second {
		t.Fatalf("first backoff %v", d)
	}
	if d := p.Backoff(2); d != 2*time.Second {
		t.Fatalf("second backoff %v", d)
	}
	if d := p.Backoff(3); d != 4*time.Second {
		t.Fatalf("third backoff %v", d)
	}
	if d := p.Backoff(10); d != maxBackoff {
		t.Fatalf("backoff not capped: %v", d)
	}
}
