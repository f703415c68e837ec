package service

import (
	"errors"
	"fmt"
)

type ErrValidation struct {
	error
}

func NewErrValidation(err error) *ErrValidation {
	return &ErrValidation{err}
}

func NewErrValidationf(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

// ErrResourceNotFound covers both missing resources and resources owned by
// someone else.
type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

func NewErrClipNotFound(id string) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "clip")
}

type ErrInvalidState struct {
	error
}

func NewErrInvalidState(format string, args ...any) *ErrInvalidState {
	return &ErrInvalidState{fmt.Errorf(format, args...)}
}

type ErrConflict struct {
	error
}

func NewErrConflict(id string) *ErrConflict {
	return &ErrConflict{fmt.Errorf("job %s was modified concurrently, re-read and retry", id)}
}

type ErrPersistence struct {
	error
}

func NewErrPersistence(err error) *ErrPersistence {
	return &ErrPersistence{fmt.Errorf("storage unavailable: %w", err)}
}

func (e *ErrPersistence) Unwrap() error {
	return errors.Unwrap(e.error)
}

type ErrUploadsDisabled struct {
	error
}

func NewErrUploadsDisabled() *ErrUploadsDisabled {
	return &ErrUploadsDisabled{errors.New("uploads are not enabled on this server")}
}
