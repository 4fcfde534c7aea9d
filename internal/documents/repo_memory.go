package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is the dev-mode repository used when no database is configured.
// Guards mirror the SQL predicates in PGRepo so the state machine behaves
// identically in both modes.
type MemoryRepo struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: make(map[string]Document)}
}

func (r *MemoryRepo) Create(ctx context.Context, d Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	r.docs[d.ID] = d
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, documentID string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[documentID]
	if !ok || d.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Document
	for _, d := range r.docs {
		if d.UserID == userID && d.DeletedAt == nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Claim(ctx context.Context, documentID string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok || d.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	if d.Status != StatusPending {
		return Document{}, ErrConflict
	}
	now := time.Now().UTC()
	d.Status = StatusProcessing
	d.Attempts++
	d.ProcessingStartedAt = &now
	r.docs[documentID] = d
	return d, nil
}

func (r *MemoryRepo) MarkAnalyzing(ctx context.Context, documentID string, ext Extraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	if d.Status != StatusProcessing || d.DeletedAt != nil {
		return ErrConflict
	}
	d.Status = StatusAnalyzing
	d.ExtractedChars = ext.Chars
	d.ExtractionMethod = ext.Method
	d.ExtractionConfidence = ext.Confidence
	r.docs[documentID] = d
	return nil
}

func (r *MemoryRepo) Complete(ctx context.Context, documentID string, res Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	if d.Status != StatusAnalyzing || d.DeletedAt != nil {
		return ErrConflict
	}
	now := time.Now().UTC()
	d.Status = StatusCompleted
	d.Summary = res.Summary
	d.KeyFindings = res.KeyFindings
	d.NextSteps = res.NextSteps
	d.ModelID = res.ModelID
	d.TokenCount = res.TokenCount
	d.FailureCode = ""
	d.FailureMessage = ""
	d.CompletedAt = &now
	r.docs[documentID] = d
	return nil
}

func (r *MemoryRepo) Fail(ctx context.Context, documentID, code, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	if (d.Status != StatusProcessing && d.Status != StatusAnalyzing) || d.DeletedAt != nil {
		return ErrConflict
	}
	now := time.Now().UTC()
	d.Status = StatusFailed
	d.FailureCode = code
	d.FailureMessage = message
	d.CompletedAt = &now
	r.docs[documentID] = d
	return nil
}

func (r *MemoryRepo) UpdateMetadata(ctx context.Context, userID, documentID, fileName, documentType string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok || d.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	if d.UserID != userID {
		return Document{}, ErrForbidden
	}
	if d.Status != StatusPending {
		return Document{}, ErrConflict
	}
	if fileName != "" {
		d.FileName = fileName
	}
	if documentType != "" {
		d.DocumentType = documentType
	}
	r.docs[documentID] = d
	return d, nil
}

func (r *MemoryRepo) ResetForRetry(ctx context.Context, userID, documentID string, maxAttempts int) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok || d.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	if d.UserID != userID {
		return Document{}, ErrForbidden
	}
	if d.Status != StatusFailed {
		return Document{}, ErrConflict
	}
	if d.Attempts > maxAttempts {
		return Document{}, ErrRetryLimit
	}
	d.Status = StatusPending
	d.FailureCode = ""
	d.FailureMessage = ""
	d.ProcessingStartedAt = nil
	d.CompletedAt = nil
	r.docs[documentID] = d
	return d, nil
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, userID, documentID string) (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[documentID]
	if !ok || d.DeletedAt != nil {
		return Document{}, ErrNotFound
	}
	if d.UserID != userID {
		return Document{}, ErrForbidden
	}
	now := time.Now().UTC()
	d.DeletedAt = &now
	r.docs[documentID] = d
	return d, nil
}

func (r *MemoryRepo) ReclaimStale(ctx context.Context, cutoff time.Time) ([]Reclaimed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reclaimed []Reclaimed
	for id, d := range r.docs {
		stuck := d.Status == StatusProcessing || d.Status == StatusAnalyzing
		if stuck && d.DeletedAt == nil &&
			d.ProcessingStartedAt != nil && d.ProcessingStartedAt.Before(cutoff) {
			d.Status = StatusPending
			d.ProcessingStartedAt = nil
			d.ExtractedChars = 0
			d.ExtractionMethod = ""
			d.ExtractionConfidence = 0
			r.docs[id] = d
			reclaimed = append(reclaimed, Reclaimed{ID: id, Attempts: d.Attempts})
		}
	}
	return reclaimed, nil
}
