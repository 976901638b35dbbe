package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the coordination engine.
type ErrorCode string

// Lookup error codes
const (
	ErrTaskNotFound     ErrorCode = "TASK_NOT_FOUND"
	ErrAgentNotFound    ErrorCode = "AGENT_NOT_FOUND"
	ErrHandoffNotFound  ErrorCode = "HANDOFF_NOT_FOUND"
	ErrConflictNotFound ErrorCode = "CONFLICT_NOT_FOUND"
)

// Coordination error codes
const (
	ErrAgentUnavailable  ErrorCode = "AGENT_UNAVAILABLE"
	ErrInvalidActor      ErrorCode = "INVALID_ACTOR"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Infrastructure error codes
const (
	ErrStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured coordination error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code, so that
// errors.Is(err, types.NewError(code, "")) matches by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsNotFound reports whether err is one of the lookup failures.
func IsNotFound(err error) bool {
	switch GetErrorCode(err) {
	case ErrTaskNotFound, ErrAgentNotFound, ErrHandoffNotFound, ErrConflictNotFound:
		return true
	}
	return false
}

// NewTaskNotFoundError creates a TASK_NOT_FOUND error.
func NewTaskNotFoundError(taskID string) *Error {
	return Errorf(ErrTaskNotFound, "task %s not found", taskID)
}

// NewAgentNotFoundError creates an AGENT_NOT_FOUND error.
func NewAgentNotFoundError(agentID string) *Error {
	return Errorf(ErrAgentNotFound, "agent %s not found", agentID)
}

// NewHandoffNotFoundError creates a HANDOFF_NOT_FOUND error.
func NewHandoffNotFoundError(handoffID string) *Error {
	return Errorf(ErrHandoffNotFound, "handoff %s not found", handoffID)
}

// NewConflictNotFoundError creates a CONFLICT_NOT_FOUND error.
func NewConflictNotFoundError(conflictID string) *Error {
	return Errorf(ErrConflictNotFound, "conflict %s not found", conflictID)
}

// NewAgentUnavailableError creates an AGENT_UNAVAILABLE error.
func NewAgentUnavailableError(agentID string) *Error {
	return Errorf(ErrAgentUnavailable, "agent %s is not available for new work", agentID)
}

// NewInvalidInputError creates an INVALID_INPUT error.
func NewInvalidInputError(message string) *Error {
	return NewError(ErrInvalidInput, message)
}

// NewStoreUnavailableError wraps a backend failure as a retryable error.
func NewStoreUnavailableError(op string, cause error) *Error {
	return Errorf(ErrStoreUnavailable, "%s failed", op).WithCause(cause).WithRetryable(true)
}
