// Package errors defines the error taxonomy shared by the services, the
// repositories and the HTTP layer.
//
// Errors fall into three groups:
//   - user-correctable: ValidationError, NotFoundError, ConflictError and
//     TransitionError. Safe to show to users, never retried.
//   - transient: TransientError. Retried by internal/retry.
//   - everything else is treated as irrecoverable.
//
// Use the classification helpers rather than type switches:
//
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors matched with errors.Is.
var (
	ErrNotFound          = New("not found")
	ErrInvalidInput      = New("invalid input")
	ErrConflict          = New("conflict")
	ErrInvalidTransition = New("invalid status transition")
	ErrTransient         = New("transient failure")
)

// ValidationError is a user-correctable input problem.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports an operation that clashes with current state.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError.
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// TransitionError rejects a task status change the state machine forbids.
type TransitionError struct {
	TaskID string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("task %s: cannot move from %s to %s", e.TaskID, e.From, e.To)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// TransientError wraps a failure that may succeed on retry.
type TransientError struct {
	Op    string
	Cause error
}

// NewTransientError wraps cause as retryable.
func NewTransientError(op string, cause error) *TransientError {
	return &TransientError{Op: op, Cause: cause}
}

func (e *TransientError) Error() string {
	if e.Cause == nil {
		return e.Op + ": transient failure"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return err != nil && Is(err, ErrTransient)
}

// IsUserFacing reports whether err carries a message safe for end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrInvalidInput) || Is(err, ErrNotFound) || Is(err, ErrConflict) || Is(err, ErrInvalidTransition)
}
