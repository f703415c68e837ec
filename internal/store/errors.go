package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrConflict is returned when a compare-and-swap write lost a race or the
	// write would break a job invariant. Callers re-read and retry.
	ErrConflict = errors.New("conflicting update")
)
