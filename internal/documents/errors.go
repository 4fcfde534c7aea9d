package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrForbidden    = errors.New("document belongs to another user")
	ErrInvalidInput = errors.New("invalid document input")
	// ErrConflict means a guarded transition lost its race: the document was
	// not in the expected status, or was deleted underneath the worker.
	ErrConflict = errors.New("document state conflict")
	// ErrRetryLimit means the user retry ceiling for this document is spent.
	ErrRetryLimit = errors.New("retry limit exceeded")
)
