package object

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrUnavailable indicates a backend I/O failure. Callers decide whether to retry.
	ErrUnavailable = errors.New("object store unavailable")

	// ErrNotFound indicates the storage key does not resolve to an object.
	ErrNotFound = errors.New("object not found")
)

// ObjectStore defines the contract for saving and retrieving binary objects.
// Save is atomic from the caller's perspective: a partial write is never
// visible to a subsequent Open.
type ObjectStore interface {
	Save(ctx context.Context, userID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
