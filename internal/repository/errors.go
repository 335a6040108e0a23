package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a guarded update did not apply because the row was already in the target state.
	ErrConflict = errors.New("repository: conflict")
	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("repository: backend unavailable")
)
