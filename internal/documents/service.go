package documents

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"

	"claimdocs-backend/internal/queue"
	"claimdocs-backend/internal/quota"
	"claimdocs-backend/internal/shared/metrics"
	"claimdocs-backend/internal/shared/storage/object"
	"claimdocs-backend/internal/shared/telemetry"
	"claimdocs-backend/internal/shared/util"
)

// Processor runs the full pipeline for one document in-process. It is the
// dev-mode substitute for a queue plus worker fleet.
type Processor interface {
	Process(ctx context.Context, documentID string, attempt int) error
}

// Service owns the user-facing document operations: upload, status, list,
// delete and retry. Workers talk to the Repo directly, not the Service.
type Service struct {
	Repo            Repo
	Store           object.ObjectStore
	Quota           *quota.Service
	Queue           queue.Client // nil means process in-process
	Processor       Processor
	StorageProvider string
	UserRetryLimit  int
}

// Submit stores the upload, creates the pending document and hands it to the
// pipeline. sizeHint is the declared size used for the quota precheck; the
// authoritative size comes back from the store.
func (s *Service) Submit(ctx context.Context, userID, requestID, fileName, documentType string, r io.Reader, sizeHint int64) (Document, error) {
	fileName, err := util.SanitizeFileName(fileName)
	if err != nil || fileName == "" {
		return Document{}, ErrInvalidInput
	}

	ok, _, err := s.Quota.CanStore(ctx, userID, sizeHint)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{}, quota.ErrLimitReached
	}

	key, size, mime, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Document{}, err
	}

	// Consume against actual bytes. A client that lied about the size can
	// still blow the ceiling here, in which case the blob is rolled back.
	if _, err := s.Quota.Consume(ctx, userID, size); err != nil {
		if derr := s.Store.Delete(ctx, key); derr != nil {
			telemetry.Error("quota rollback delete failed", map[string]any{"storageKey": key, "error": derr.Error()})
		}
		return Document{}, err
	}

	d := Document{
		ID:              uuid.NewString(),
		UserID:          userID,
		FileName:        fileName,
		DocumentType:    strings.TrimSpace(documentType),
		MimeType:        mime,
		SizeBytes:       size,
		StorageProvider: s.StorageProvider,
		StorageKey:      key,
		Status:          StatusPending,
	}
	if err := s.Repo.Create(ctx, d); err != nil {
		if derr := s.Store.Delete(ctx, key); derr != nil {
			telemetry.Error("create rollback delete failed", map[string]any{"storageKey": key, "error": derr.Error()})
		}
		return Document{}, err
	}
	metrics.IncDocumentsReceived()
	s.dispatch(ctx, d.ID, requestID, 1)
	return d, nil
}

// dispatch enqueues one processing attempt, falling back to an in-process
// run when no queue is configured or the send fails.
func (s *Service) dispatch(ctx context.Context, documentID, requestID string, attempt int) {
	if s.Queue != nil {
		err := s.Queue.Send(ctx, queue.NewMessage(documentID, requestID, attempt))
		if err == nil {
			return
		}
		telemetry.Error("enqueue failed, processing in-process", map[string]any{
			"documentId": documentID,
			"error":      err.Error(),
		})
	}
	if s.Processor == nil {
		telemetry.Error("no processor configured, document will stay pending", map[string]any{
			"documentId": documentID,
		})
		return
	}
	go func() {
		if err := s.Processor.Process(context.Background(), documentID, attempt); err != nil {
			telemetry.Error("in-process pipeline failed", map[string]any{
				"documentId": documentID,
				"requestId":  requestID,
				"error":      err.Error(),
			})
		}
	}()
}

// Status returns the document for its owner. Callers never see other users'
// documents, and deleted documents read as missing.
func (s *Service) Status(ctx context.Context, userID, documentID string) (Document, error) {
	d, err := s.Repo.Get(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if d.UserID != userID {
		return Document{}, ErrForbidden
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateMetadata renames or retags a pending document. Documents already in
// flight keep the metadata the pipeline saw.
func (s *Service) UpdateMetadata(ctx context.Context, userID, documentID, fileName, documentType string) (Document, error) {
	if fileName != "" {
		clean, err := util.SanitizeFileName(fileName)
		if err != nil {
			return Document{}, ErrInvalidInput
		}
		fileName = clean
	}
	documentType = strings.TrimSpace(documentType)
	if fileName == "" && documentType == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.UpdateMetadata(ctx, userID, documentID, fileName, documentType)
}

// Delete soft-deletes the record and then removes the stored blob. The blob
// delete is best effort: the soft delete already makes the document
// unreachable, and an orphaned object is preferable to a dangling record.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	d, err := s.Repo.SoftDelete(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if d.StorageKey != "" {
		if err := s.Store.Delete(ctx, d.StorageKey); err != nil {
			telemetry.Error("blob delete failed after soft delete", map[string]any{
				"documentId": documentID,
				"storageKey": d.StorageKey,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

// Retry moves a failed document back to pending and re-dispatches it. The
// repo enforces ownership, the failed precondition and the retry ceiling.
func (s *Service) Retry(ctx context.Context, userID, requestID, documentID string) (Document, error) {
	d, err := s.Repo.ResetForRetry(ctx, userID, documentID, s.UserRetryLimit)
	if err != nil {
		return Document{}, err
	}
	s.dispatch(ctx, d.ID, requestID, d.Attempts+1)
	return d, nil
}
