package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an event the engine refused or could not apply.
//
// Runtime errors include:
//   - Malformed event: failed boundary validation
//   - Unknown event: unrecognised event type
//   - Engine stopped: event submitted after Stop
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// EventID identifies the offending message, when it has one.
	EventID string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMalformedEvent indicates an event failed schema validation.
	ErrCodeMalformedEvent RuntimeErrorCode = "MALFORMED_EVENT"

	// ErrCodeUnknownEvent indicates an event of an unrecognised type.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"

	// ErrCodeEngineStopped indicates the engine no longer accepts events.
	ErrCodeEngineStopped RuntimeErrorCode = "ENGINE_STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EventID != "" {
		msg += fmt.Sprintf(" (event=%s)", e.EventID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsMalformedError returns true if the error is a validation rejection.
// Uses errors.As to handle wrapped errors.
func IsMalformedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeMalformedEvent
	}
	return false
}

// IsStoppedError returns true if the engine was stopped.
func IsStoppedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeEngineStopped
	}
	return false
}

func newMalformedError(eventID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMalformedEvent,
		Message: "event failed validation",
		EventID: eventID,
		Err:     cause,
	}
}

func newUnknownEventError(t EventType) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownEvent,
		Message: fmt.Sprintf("unknown event type: %s", t),
	}
}

var errStopped = &RuntimeError{
	Code:    ErrCodeEngineStopped,
	Message: "engine is stopped",
}
