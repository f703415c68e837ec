package pipeline

import (
	"errors"
	"fmt"

	"github.com/clipforge/clipforge/internal/store/model"
)

const reasonStageTimeout = "stage timeout"

var (
	ErrStageTimeout = errors.New(reasonStageTimeout)
	ErrCancelled    = errors.New(model.ReasonCancelled)
	ErrInterrupted  = errors.New(model.ReasonInterrupted)

	// errNotClaimable means another runner owns the job or it already ended.
	errNotClaimable = errors.New("job is not queued")
	// errLostOwnership means the job left the running state under us.
	errLostOwnership = errors.New("job is no longer running")
)

// StageError is a failure of one pipeline stage.
type StageError struct {
	Stage model.Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FailureReason is the text recorded as the job's error reason.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrCancelled):
		return model.ReasonCancelled
	case errors.Is(err, ErrInterrupted):
		return model.ReasonInterrupted
	case errors.Is(err, ErrStageTimeout):
		return reasonStageTimeout
	default:
		return err.Error()
	}
}
