package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrSessionNotFound is returned when a session ID cannot be found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session whose ID is
	// already live and non-terminal.
	ErrSessionExists = errors.New("session already exists")

	// ErrStateConflict is returned when an operation is invalid for the
	// current loop or item status.
	ErrStateConflict = errors.New("operation invalid for current state")

	// ErrConcurrentMutation is returned when a second mutation is
	// attempted while one is in flight for the same session.
	ErrConcurrentMutation = errors.New("another operation is in progress")

	// ErrValidation is returned for rejected input before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrPlanBlocked is reported by an executor when a failure makes the
	// remaining plan impossible to complete.
	ErrPlanBlocked = errors.New("failure blocks the remaining plan")

	// ErrUnparsable is returned when neither parser strategy produced a
	// usable intent.
	ErrUnparsable = errors.New("could not understand input")
)

// Error codes carried across the boundary.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeStateConflict = "STATE_CONFLICT"
	CodeConflictBusy  = "CONCURRENT_MUTATION"
	CodeNotFound      = "SESSION_NOT_FOUND"
	CodePlanFailed    = "PLANNING_FAILED"
	CodeExecFailed    = "EXECUTION_FAILED"
	CodeUnparsable    = "INTENT_UNPARSABLE"
	CodeInternal      = "INTERNAL_ERROR"
)

// CodedError is the structured error shape exposed at the boundary.
// Status carries the loop status at rejection time so callers can
// resynchronize after a state conflict.
type CodedError struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Status  LoopStatus `json:"status,omitempty"`
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCodedError builds a CodedError with a formatted message.
func NewCodedError(code string, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsCoded maps an arbitrary error to the boundary shape. Known sentinels
// get stable codes; everything else is internal.
func AsCoded(err error) *CodedError {
	if err == nil {
		return nil
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded
	}
	switch {
	case errors.Is(err, ErrValidation):
		return &CodedError{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, ErrStateConflict):
		return &CodedError{Code: CodeStateConflict, Message: err.Error()}
	case errors.Is(err, ErrConcurrentMutation):
		return &CodedError{Code: CodeConflictBusy, Message: err.Error()}
	case errors.Is(err, ErrSessionNotFound):
		return &CodedError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, ErrUnparsable):
		return &CodedError{Code: CodeUnparsable, Message: err.Error()}
	default:
		return &CodedError{Code: CodeInternal, Message: err.Error()}
	}
}
