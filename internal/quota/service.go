package quota

import "context"

type store interface {
	Get(ctx context.Context, userID string) (Quota, error)
	EnsurePeriod(ctx context.Context, userID string) (Quota, error)
	Consume(ctx context.Context, userID string, docs int, bytes int64) (Quota, error)
	Reset(ctx context.Context, userID string) (Quota, error)
}

// Service manages per-user quota data via an underlying store. Quota checks
// happen synchronously at upload time; a rejected upload never enqueues a job.
type Service struct {
	store store
}

// NewService constructs a Service with an in-memory store.
func NewService(defaults Defaults) *Service {
	return &Service{store: newMemoryStore(defaults)}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// Get returns the current quota for a user, initializing defaults if absent.
func (s *Service) Get(ctx context.Context, userID string) (Quota, error) {
	return s.store.Get(ctx, userID)
}

// CanStore reports whether storing one more document of the given size fits.
func (s *Service) CanStore(ctx context.Context, userID string, sizeBytes int64) (bool, Quota, error) {
	q, err := s.store.EnsurePeriod(ctx, userID)
	if err != nil {
		return false, Quota{}, err
	}
	if q.DocsUsed+1 > q.DocLimit {
		return false, q, nil
	}
	if sizeBytes > 0 && q.BytesUsed+sizeBytes > q.BytesLimit {
		return false, q, nil
	}
	return true, q, nil
}

// Consume records one stored document of the given size if within limits.
func (s *Service) Consume(ctx context.Context, userID string, sizeBytes int64) (Quota, error) {
	return s.store.Consume(ctx, userID, 1, sizeBytes)
}

// Reset zeroes a user's usage and starts a fresh period.
func (s *Service) Reset(ctx context.Context, userID string) (Quota, error) {
	return s.store.Reset(ctx, userID)
}
