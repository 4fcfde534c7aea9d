package documents

import (
	"context"
	"time"
)

// Repo persists documents and enforces the status transitions as compare
// and swap updates. Every guarded method returns ErrConflict when the row
// was not in the expected state, which callers treat as "someone else got
// there first" rather than a failure.
type Repo interface {
	Create(ctx context.Context, d Document) error
	// Get returns a document regardless of owner so workers can load claimed
	// work. Soft-deleted documents are invisible.
	Get(ctx context.Context, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)

	// Claim atomically moves pending -> processing, increments attempts and
	// stamps processing_started_at. ErrConflict when the document is not
	// pending, ErrNotFound when it does not exist or is deleted.
	Claim(ctx context.Context, documentID string) (Document, error)
	// MarkAnalyzing moves processing -> analyzing and records extraction
	// metadata. The extracted text itself is never stored.
	MarkAnalyzing(ctx context.Context, documentID string, ext Extraction) error
	// Complete moves analyzing -> completed with the analysis result. It
	// refuses (ErrConflict) when the document was deleted mid-flight.
	Complete(ctx context.Context, documentID string, res Analysis) error
	// Fail moves processing|analyzing -> failed with a user-safe code.
	Fail(ctx context.Context, documentID, code, message string) error

	// UpdateMetadata lets the owner rename or retag a document while it is
	// still pending. Once a worker claims it the metadata is frozen.
	UpdateMetadata(ctx context.Context, userID, documentID, fileName, documentType string) (Document, error)

	// ResetForRetry moves failed -> pending when the owner asks, clearing
	// failure fields. maxAttempts bounds how often this can happen.
	ResetForRetry(ctx context.Context, userID, documentID string, maxAttempts int) (Document, error)
	SoftDelete(ctx context.Context, userID, documentID string) (Document, error)

	// ReclaimStale returns processing and analyzing documents whose claim
	// predates cutoff back to pending, so crashed workers do not strand work
	// forever. The reclaimed rows come back so the caller can re-enqueue them.
	ReclaimStale(ctx context.Context, cutoff time.Time) ([]Reclaimed, error)
}

// Reclaimed identifies a document returned to pending by ReclaimStale along
// with how many claims it had already consumed.
type Reclaimed struct {
	ID       string
	Attempts int
}
