package pipeline

import (
	"fmt"

	"github.com/jonathan/qa-orchestrator/internal/types"
)

// UnknownSessionError is returned when no checkpoint exists for a session key.
type UnknownSessionError struct {
	SessionKey string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("unknown session: %s", e.SessionKey)
}

// NotSuspendedError is returned by Resume when the run is not waiting at a gate.
type NotSuspendedError struct {
	SessionKey string
	Status     types.Status
	Stage      types.Stage
}

func (e *NotSuspendedError) Error() string {
	return fmt.Sprintf("session %s is not waiting for approval (status %s, stage %s)", e.SessionKey, e.Status, e.Stage)
}

// CollaboratorFailure wraps an error raised by a generator or the evaluator.
// It fails the run; the cause text becomes the run's error message.
type CollaboratorFailure struct {
	Stage types.Stage
	Kind  types.Kind
	Cause error
}

func (e *CollaboratorFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *CollaboratorFailure) Unwrap() error {
	return e.Cause
}

// ValidationError reports a malformed request made to the controller.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
