package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a retryable concurrency conflict: the caller may
	// safely retry the whole unit of work.
	ErrConflict = errors.New("concurrent update conflict")
)
