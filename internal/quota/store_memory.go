package quota

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	data     map[string]Quota
	defaults Defaults
}

func newMemoryStore(defaults Defaults) *memoryStore {
	return &memoryStore{
		data:     make(map[string]Quota),
		defaults: defaults.normalized(),
	}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Quota, error) {
	return s.ensure(ctx, userID)
}

func (s *memoryStore) EnsurePeriod(ctx context.Context, userID string) (Quota, error) {
	return s.ensure(ctx, userID)
}

func (s *memoryStore) ensure(ctx context.Context, userID string) (Quota, error) {
	if err := ctx.Err(); err != nil {
		return Quota{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.data[userID]
	if !ok {
		q = s.defaults.newQuota(now)
	}
	if !now.Before(q.ResetsAt) {
		q.DocsUsed = 0
		q.BytesUsed = 0
		q.ResetsAt = nextPeriod(now)
	}
	s.data[userID] = q
	return q, nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string, docs int, bytes int64) (Quota, error) {
	if err := ctx.Err(); err != nil {
		return Quota{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.data[userID]
	if !ok {
		q = s.defaults.newQuota(now)
	}
	if !now.Before(q.ResetsAt) {
		q.DocsUsed = 0
		q.BytesUsed = 0
		q.ResetsAt = nextPeriod(now)
	}
	if q.DocsUsed+docs > q.DocLimit {
		return Quota{}, ErrLimitReached
	}
	if bytes > 0 && q.BytesUsed+bytes > q.BytesLimit {
		return Quota{}, ErrLimitReached
	}
	q.DocsUsed += docs
	q.BytesUsed += bytes
	s.data[userID] = q
	return q, nil
}

func (s *memoryStore) Reset(ctx context.Context, userID string) (Quota, error) {
	if err := ctx.Err(); err != nil {
		return Quota{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.data[userID]
	if !ok {
		q = s.defaults.newQuota(now)
	}
	q.DocsUsed = 0
	q.BytesUsed = 0
	q.ResetsAt = nextPeriod(now)
	s.data[userID] = q
	return q, nil
}
