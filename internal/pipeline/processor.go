package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"claimdocs-backend/internal/documents"
	"claimdocs-backend/internal/extract"
	"claimdocs-backend/internal/llm"
	"claimdocs-backend/internal/shared/metrics"
	"claimdocs-backend/internal/shared/storage/object"
	"claimdocs-backend/internal/shared/telemetry"
)

// Processor runs one document through the full pipeline: claim, extract,
// analyze, complete. It is safe to call concurrently for different
// documents and safe to call twice for the same one; the claim decides who
// does the work.
type Processor struct {
	Repo      documents.Repo
	Store     object.ObjectStore
	Extractor *extract.Extractor
	Analyzer  llm.Client
	Policy    Policy
	// TextLimit caps characters sent to analysis. Zero means no cap.
	TextLimit int

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewProcessor(repo documents.Repo, store object.ObjectStore, ex *extract.Extractor, an llm.Client, policy Policy, textLimit int) *Processor {
	return &Processor{
		Repo:      repo,
		Store:     store,
		Extractor: ex,
		Analyzer:  an,
		Policy:    policy,
		TextLimit: textLimit,
		sleep:     sleepCtx,
	}
}

// Process handles one attempt envelope. A nil return means the message is
// done: either the work finished, someone else owns it, or the document
// failed and the failure was recorded. Errors mean the caller should let
// the message be redelivered.
func (p *Processor) Process(ctx context.Context, documentID string, attempt int) error {
	start := time.Now()

	doc, err := p.Repo.Claim(ctx, documentID)
	if errors.Is(err, documents.ErrConflict) || errors.Is(err, documents.ErrNotFound) {
		telemetry.Info("skipping document, not claimable", map[string]any{
			"documentId": documentID,
			"reason":     err.Error(),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim %s: %w", documentID, err)
	}

	res, err := p.extractWithRetry(ctx, doc)
	if err != nil {
		return p.fail(ctx, doc.ID, err)
	}

	chars := utf8.RuneCountInString(res.Text)
	ext := documents.Extraction{Chars: chars, Method: res.Method, Confidence: res.Confidence}
	if err := p.Repo.MarkAnalyzing(ctx, doc.ID, ext); err != nil {
		if errors.Is(err, documents.ErrConflict) || errors.Is(err, documents.ErrNotFound) {
			telemetry.Info("document gone before analysis", map[string]any{"documentId": doc.ID})
			return nil
		}
		return fmt.Errorf("mark analyzing %s: %w", doc.ID, err)
	}

	analysis, err := p.analyzeWithRetry(ctx, doc, res.Text)
	if err != nil {
		return p.fail(ctx, doc.ID, err)
	}

	err = p.Repo.Complete(ctx, doc.ID, documents.Analysis{
		Summary:     analysis.Summary,
		KeyFindings: analysis.KeyFindings,
		NextSteps:   analysis.NextSteps,
		ModelID:     analysis.ModelID,
		TokenCount:  analysis.TokenCount,
	})
	if errors.Is(err, documents.ErrConflict) || errors.Is(err, documents.ErrNotFound) {
		// Deleted while we were analyzing. The result is discarded.
		telemetry.Info("document deleted mid-flight, discarding result", map[string]any{
			"documentId": doc.ID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete %s: %w", doc.ID, err)
	}

	metrics.IncDocumentsCompleted()
	metrics.ObservePipelineDurationMs(float64(time.Since(start).Milliseconds()))
	telemetry.Info("document completed", map[string]any{
		"documentId":     doc.ID,
		"attempt":        attempt,
		"extractedChars": chars,
		"method":         res.Method,
		"durationMs":     time.Since(start).Milliseconds(),
	})
	return nil
}

func (p *Processor) extractWithRetry(ctx context.Context, doc documents.Document) (extract.Result, error) {
	var res extract.Result
	err := p.withRetry(ctx, doc.ID, "extract", func() error {
		rc, err := p.Store.Open(ctx, doc.StorageKey)
		if err != nil {
			return err
		}
		defer rc.Close()
		r, err := p.Extractor.Extract(ctx, rc, doc.MimeType, doc.FileName)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

func (p *Processor) analyzeWithRetry(ctx context.Context, doc documents.Document, text string) (llm.Result, error) {
	if p.TextLimit > 0 {
		text = truncateRunes(text, p.TextLimit)
	}
	in := llm.AnalyzeInput{Text: text, DocumentType: doc.DocumentType, FileName: doc.FileName}

	var res llm.Result
	err := p.withRetry(ctx, doc.ID, "analyze", func() error {
		r, err := p.Analyzer.Analyze(ctx, in)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// withRetry runs fn once plus up to MaxRetries extra attempts for transient
// failures. Terminal failures surface immediately; exhaustion surfaces as a
// retryExhaustedError wrapping the last failure.
func (p *Processor) withRetry(ctx context.Context, documentID, stage string, fn func() error) error {
	var lastErr error
	for n := 0; n <= p.Policy.MaxRetries; n++ {
		if n > 0 {
			metrics.IncTransientRetries()
			if err := p.sleep(ctx, p.Policy.Backoff(n)); err != nil {
				return err
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if Classify(lastErr) == ClassTerminal {
			return lastErr
		}
		telemetry.Warn("transient failure, will retry", map[string]any{
			"documentId": documentID,
			"stage":      stage,
			"attempt":    n + 1,
			"error":      lastErr.Error(),
		})
	}
	return &retryExhaustedError{cause: lastErr}
}

// fail records the failure on the document with a user-safe code. The raw
// error goes to logs only.
func (p *Processor) fail(ctx context.Context, documentID string, cause error) error {
	if errors.Is(cause, context.Canceled) {
		// Shutdown, not a document problem. Leave the claim for reclaiming.
		return cause
	}
	code := documents.FailureRetryLimitExceeded
	var exhausted *retryExhaustedError
	if !errors.As(cause, &exhausted) {
		code = FailureCode(cause)
	}

	telemetry.Error("document processing failed", map[string]any{
		"documentId": documentID,
		"code":       code,
		"error":      cause.Error(),
	})

	err := p.Repo.Fail(ctx, documentID, code, cause.Error())
	if errors.Is(err, documents.ErrConflict) || errors.Is(err, documents.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record failure for %s: %w", documentID, err)
	}
	metrics.IncDocumentsFailed()
	return nil
}

type retryExhaustedError struct {
	cause error
}

func (e *retryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted: %v", e.cause)
}

func (e *retryExhaustedError) Unwrap() error { return e.cause }

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
