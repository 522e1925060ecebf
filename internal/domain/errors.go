package domain

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable category carried by every failure the registry reports.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindForbidden       Kind = "forbidden"
	KindUnauthenticated Kind = "unauthenticated"
	KindValidation      Kind = "validation_error"
	KindInvalidArgument Kind = "invalid_argument"
	KindUpstreamFetch   Kind = "upstream_fetch_error"
	KindNotification    Kind = "notification_error"
	KindInternal        Kind = "internal_error"
)

// Error is a categorized registry failure. Reason is safe to show to callers.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a categorized error with a formatted reason.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and reason to an underlying error.
func Wrap(kind Kind, err error, reason string) error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func NotFound(format string, args ...any) error { return Errorf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) error { return Errorf(KindConflict, format, args...) }
func Forbidden(format string, args ...any) error {
	return Errorf(KindForbidden, format, args...)
}
func Unauthenticated(format string, args ...any) error {
	return Errorf(KindUnauthenticated, format, args...)
}
func Validation(format string, args ...any) error {
	return Errorf(KindValidation, format, args...)
}
func InvalidArgument(format string, args ...any) error {
	return Errorf(KindInvalidArgument, format, args...)
}

// KindOf returns the category of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a registry error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ReasonOf returns the human-readable part of err.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return err.Error()
}
