package workerproc

import (
	"context"
	"errors"
	"testing"
	"time"

	"claimdocs-backend/internal/documents"
	"claimdocs-backend/internal/pipeline"
	"claimdocs-backend/internal/queue"
)

func newHandler() *Handler {
	// A processor over an empty repo: any documentId resolves to not-found,
	// which Process treats as done.
	return &Handler{Processor: pipeline.NewProcessor(
		documents.NewMemoryRepo(), nil, nil, nil,
		pipeline.Policy{MaxRetries: 1, BaseDelay: time.Millisecond}, 0,
	)}
}

func TestHandleEmptyBody(t *testing.T) {
	err := newHandler().Handle(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("want ErrEmptyBody, got %v", err)
	}
	if !Unrecoverable(err) {
		t.Fatal("empty body should be unrecoverable")
	}
}

func TestHandleMalformedBody(t *testing.T) {
	err := newHandler().Handle(context.Background(), "{not json")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("want ErrDecode, got %v", err)
	}
	if !Unrecoverable(err) {
		t.Fatal("undecodable body should be unrecoverable")
	}
}

func TestHandleUnknownDocumentIsDone(t *testing.T) {
	body, err := queue.NewMessage("no-such-doc", "req", 1).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := newHandler().Handle(context.Background(), body); err != nil {
		t.Fatalf("unknown document should be swallowed, got %v", err)
	}
}
