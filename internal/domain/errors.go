package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrNotFound is returned when a bundle or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest is returned for malformed publish requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrIllegalTransition is returned when a job state change is not
	// permitted, including any mutation of a terminal job.
	ErrIllegalTransition = errors.New("illegal state transition")
)

// ErrorKind labels a failure for the caller. Kinds are stable strings so
// the dashboard and ledger replay tooling can match on them.
type ErrorKind string

const (
	KindValidation     ErrorKind = "ValidationError"
	KindSchedule       ErrorKind = "ScheduleError"
	KindAuth           ErrorKind = "AuthError"
	KindAssetNotHosted ErrorKind = "AssetNotHosted"
	KindSlugConflict   ErrorKind = "SlugConflict"
	KindRetryExhausted ErrorKind = "RetryExhausted"
	KindRateLimited    ErrorKind = "RateLimited"
	KindCancelled      ErrorKind = "Cancelled"
	KindPlatform       ErrorKind = "PlatformError"
)

// Error is a typed failure carrying its kind through error wrapping.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a typed error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a kind and message.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Untyped errors map to
// KindPlatform.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindPlatform
}
