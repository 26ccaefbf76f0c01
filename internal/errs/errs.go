// Package errs defines the error taxonomy shared by the award and grant paths.
package errs

import (
	"errors"
	"fmt"
)

// Base kinds, matched with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyGranted  = errors.New("already granted")
	ErrOptedOut        = errors.New("opted out")
)

// Error is a classified failure carrying the operation and offending field.
type Error struct {
	Op      string // e.g. "award", "grant", "has_level"
	Kind    error  // one of the base kinds
	Field   string // input field the failure refers to, if any
	Message string
	Err     error // underlying cause, optional
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause, or the kind when there is none.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches the kind as well as the wrapped cause.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// New creates a classified error.
func New(op string, kind error, field, message string) *Error {
	return &Error{Op: op, Kind: kind, Field: field, Message: message}
}

// NotFound reports a missing metric, group, achievement or prize.
func NotFound(op, field, format string, args ...any) *Error {
	return New(op, ErrNotFound, field, fmt.Sprintf(format, args...))
}

// InvalidState reports an existing but unusable entity, usually inactive.
func InvalidState(op, field, format string, args ...any) *Error {
	return New(op, ErrInvalidState, field, fmt.Sprintf(format, args...))
}

// InvalidArgument reports a caller programming error.
func InvalidArgument(op, field, format string, args ...any) *Error {
	return New(op, ErrInvalidArgument, field, fmt.Sprintf(format, args...))
}

// AlreadyGranted reports a duplicate achievement grant.
func AlreadyGranted(op, format string, args ...any) *Error {
	return New(op, ErrAlreadyGranted, "slug", fmt.Sprintf(format, args...))
}

// OptedOut reports a recipient that disabled gamification.
func OptedOut(op string) *Error {
	return New(op, ErrOptedOut, "recipient", "recipient has opted out of gamification")
}

// KindOf returns the base kind of err, or nil for unclassified errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalidState, ErrInvalidArgument, ErrAlreadyGranted, ErrOptedOut} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName returns a short label for the kind of err, suitable for metrics.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrInvalidState:
		return "invalid_state"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrAlreadyGranted:
		return "already_granted"
	case ErrOptedOut:
		return "opted_out"
	default:
		return "internal"
	}
}

// IsBusiness reports whether err is an expected, recoverable rule failure.
// InvalidArgument is excluded: it signals a bug in the caller.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case ErrNotFound, ErrInvalidState, ErrAlreadyGranted, ErrOptedOut:
		return true
	default:
		return false
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyGranted checks if the error is a duplicate grant.
func IsAlreadyGranted(err error) bool {
	return errors.Is(err, ErrAlreadyGranted)
}

// IsInvalidArgument checks if the error is a caller input error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// FieldOf returns the field recorded on a classified error.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// MessageOf returns the human readable message of a classified error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
