// Package workerproc holds the queue-message handling shared by the worker
// binary: decoding job envelopes and deciding what a processing error means
// for the message.
package workerproc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"claimdocs-backend/internal/pipeline"
	"claimdocs-backend/internal/queue"
	"claimdocs-backend/internal/shared/metrics"
	"claimdocs-backend/internal/shared/telemetry"
)

var (
	// ErrEmptyBody marks a message with nothing in it. Delete, never retry.
	ErrEmptyBody = errors.New("empty message body")
	// ErrDecode marks a malformed envelope. Delete, never retry.
	ErrDecode = errors.New("cannot decode message")
	// ErrProcess marks a processing failure. Leave for redelivery.
	ErrProcess = errors.New("processing failed")
)

// Handler processes one raw queue message body.
type Handler struct {
	Processor *pipeline.Processor
}

// Handle decodes and runs one message. The error's identity tells the poll
// loop what to do with the message: ErrEmptyBody and ErrDecode mean the
// message is unrecoverable and should be deleted, ErrProcess means it can be
// redelivered, nil means done.
func (h *Handler) Handle(ctx context.Context, body string) error {
	metrics.IncJobsReceived()

	if strings.TrimSpace(body) == "" {
		metrics.IncJobsDeletedUnrecoverable()
		return ErrEmptyBody
	}

	msg, err := queue.Decode(body)
	if err != nil {
		telemetry.Error("dropping undecodable message", map[string]any{"error": err.Error()})
		metrics.IncJobsDeletedUnrecoverable()
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if err := h.Processor.Process(ctx, msg.DocumentID, msg.Attempt); err != nil {
		metrics.IncJobsFailed()
		return fmt.Errorf("%w: document %s: %v", ErrProcess, msg.DocumentID, err)
	}
	metrics.IncJobsCompleted()
	return nil
}

// Unrecoverable reports whether the message should be deleted rather than
// redelivered.
func Unrecoverable(err error) bool {
	return errors.Is(err, ErrEmptyBody) || errors.Is(err, ErrDecode)
}
