package documents

import (
	"context"
	"testing"
	"time"
)

func seedDoc(t *testing.T, r *MemoryRepo, id, userID string) Document {
	t.Helper()
	d := Document{ID: id, UserID: userID, FileName: "claim.pdf", Status: StatusPending}
	if err := r.Create(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}
	return d
}

func TestClaimIsExclusive(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "d1", "u1")

	first, err := r.Claim(ctx, "d1")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first.Status != StatusProcessing || first.Attempts != 1 {
		t.Fatalf("unexpected claimed doc: status=%s attempts=%d", first.Status, first.Attempts)
	}
	if _, err := r.Claim(ctx, "d1"); err != ErrConflict {
		t.Fatalf("second claim: want ErrConflict, got %v", err)
	}
}

func TestHappyPathTransitions(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "d1", "u1")

	if _, err := r.Claim(ctx, "d1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ext := Extraction{Chars: 1200, Method: "native", Confidence: 1.0}
	if err := r.MarkAnalyzing(ctx, "d1", ext); err != nil {
		t.Fatalf("mark analyzing: %v", err)
	}
	res := Analysis{Summary: "a hospital bill", KeyFindings: []string{"total due $420"}, ModelID: "gpt-4o-mini", TokenCount: 512}
	if err := r.Complete(ctx, "d1", res); err != nil {
		t.Fatalf("complete: %v", err)
	}

	d, err := r.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != StatusCompleted || d.Summary != "a hospital bill" || d.ExtractedChars != 1200 {
		t.Fatalf("unexpected final doc: %+v", d)
	}
	if d.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
}

func TestCompleteRefusesSkippingAnalyzing(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "d1", "u1")
	if _, err := r.Claim(ctx, "d1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := r.Complete(ctx, "d1", Analysis{Summary: "x"}); err != ErrConflict {
		t.Fatalf("want ErrConflict when completing from processing, got %v", err)
	}
}

func TestCompleteRefusesAfterDelete(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "d1", "u1")
	if _, err := r.Claim(ctx, "d1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := r.MarkAnalyzing(ctx, "d1", Extraction{Chars: 10, Method: "native", Confidence: 1}); err != nil {
		t.Fatalf("mark analyzing: %v", err)
	}
	if _, err := r.SoftDelete(ctx, "u1", "d1"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := r.Complete(ctx, "d1", Analysis{Summary: "x"}); err != ErrConflict {
		t.Fatalf("want ErrConflict after delete, got %v", err)
	}
}

func TestFailAndResetForRetry(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "d1", "u1")
	if _, err := r.Claim(ctx, "d1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := r.Fail(ctx, "d1", FailureExtractionFailed, "no text"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if _, err := r.ResetForRetry(ctx, "u2", "d1", 3); err != ErrForbidden {
		t.Fatalf("foreign retry: want ErrForbidden, got %v", err)
	}

	d, err := r.ResetForRetry(ctx, "u1", "d1", 3)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if d.Status != StatusPending || d.FailureCode != "" {
		t.Fatalf("reset did not clear failure: %+v", d)
	}
}

func TestResetForRetryCeiling(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "d1", "u1")

	// Burn through the ceiling: claim+fail, then reset, three times over.
	for i := 0; i < 3; i++ {
		if _, err := r.Claim(ctx, "d1"); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if err := r.Fail(ctx, "d1", FailureAnalysisUnavailable, "down"); err != nil {
			t.Fatalf("fail %d: %v", i, err)
		}
		if _, err := r.ResetForRetry(ctx, "u1", "d1", 3); err != nil {
			t.Fatalf("reset %d: %v", i, err)
		}
	}
	if _, err := r.Claim(ctx, "d1"); err != nil {
		t.Fatalf("final claim: %v", err)
	}
	if err := r.Fail(ctx, "d1", FailureAnalysisUnavailable, "down"); err != nil {
		t.Fatalf("final fail: %v", err)
	}
	if _, err := r.ResetForRetry(ctx, "u1", "d1", 3); err != ErrRetryLimit {
		t.Fatalf("want ErrRetryLimit, got %v", err)
	}
}

func TestReclaimStale(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "old", "u1")
	seedDoc(t, r, "fresh", "u1")

	if _, err := r.Claim(ctx, "old"); err != nil {
		t.Fatalf("claim old: %v", err)
	}
	if _, err := r.Claim(ctx, "fresh"); err != nil {
		t.Fatalf("claim fresh: %v", err)
	}

	// Backdate the old claim past the cutoff.
	r.mu.Lock()
	d := r.docs["old"]
	past := time.Now().UTC().Add(-time.Hour)
	d.ProcessingStartedAt = &past
	r.docs["old"] = d
	r.mu.Unlock()

	reclaimed, err := r.ReclaimStale(ctx, time.Now().UTC().Add(-20*time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != "old" {
		t.Fatalf("want [old], got %v", reclaimed)
	}
	if reclaimed[0].Attempts != 1 {
		t.Fatalf("want attempts 1, got %d", reclaimed[0].Attempts)
	}
	got, _ := r.Get(ctx, "old")
	if got.Status != StatusPending {
		t.Fatalf("old not reclaimed: %s", got.Status)
	}
	got, _ = r.Get(ctx, "fresh")
	if got.Status != StatusProcessing {
		t.Fatalf("fresh should stay processing: %s", got.Status)
	}
}

func TestReclaimStaleCoversAnalyzing(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "stuck", "u1")

	if _, err := r.Claim(ctx, "stuck"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ext := Extraction{Chars: 512, Method: "native", Confidence: 1.0}
	if err := r.MarkAnalyzing(ctx, "stuck", ext); err != nil {
		t.Fatalf("mark analyzing: %v", err)
	}

	r.mu.Lock()
	d := r.docs["stuck"]
	past := time.Now().UTC().Add(-time.Hour)
	d.ProcessingStartedAt = &past
	r.docs["stuck"] = d
	r.mu.Unlock()

	reclaimed, err := r.ReclaimStale(ctx, time.Now().UTC().Add(-20*time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != "stuck" {
		t.Fatalf("want [stuck], got %v", reclaimed)
	}

	got, _ := r.Get(ctx, "stuck")
	if got.Status != StatusPending {
		t.Fatalf("want pending, got %s", got.Status)
	}
	if got.ExtractedChars != 0 || got.ExtractionMethod != "" || got.ExtractionConfidence != 0 {
		t.Fatalf("extraction fields not cleared: %+v", got)
	}

	// The reclaimed document must be claimable again.
	if _, err := r.Claim(ctx, "stuck"); err != nil {
		t.Fatalf("re-claim after reclaim: %v", err)
	}
}

func TestDeletedDocsAreInvisible(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	seedDoc(t, r, "d1", "u1")
	if _, err := r.SoftDelete(ctx, "u1", "d1"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := r.Get(ctx, "d1"); err != ErrNotFound {
		t.Fatalf("get after delete: want ErrNotFound, got %v", err)
	}
	docs, err := r.ListByUser(ctx, "u1", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("deleted doc still listed: %d", len(docs))
	}
}
