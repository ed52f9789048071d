package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage layer.
// HTTP handlers should use errors.Is() to map these to appropriate HTTP status codes.
var (
	// ErrNotFound indicates the referenced resource or its scope does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a name collides with a sibling in the same scope.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPrecondition indicates the resource is in a state that forbids the operation.
	ErrPrecondition = errors.New("precondition failed")

	// ErrValidation indicates the input failed validation
	// (e.g., a size below the minimum).
	ErrValidation = errors.New("validation error")

	// ErrForbidden indicates the caller may not see the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrNotImplemented indicates the operation is stubbed out.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnavailable indicates a simulated service outage.
	ErrUnavailable = errors.New("service unavailable")

	// ErrInternal indicates a simulated server failure.
	ErrInternal = errors.New("internal error")
)

// Error is a failure with a message suitable for the response body.
// Kind is one of the sentinel errors above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newErr(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound error with a "not found: ..." message.
func NotFound(format string, args ...any) error {
	return newErr(ErrNotFound, "not found: "+format, args...)
}

// AlreadyExists returns an ErrAlreadyExists error for a name collision.
func AlreadyExists(kind, name string) error {
	return newErr(ErrAlreadyExists, "already exists: %s %q", kind, name)
}

// Precondition returns an ErrPrecondition error.
func Precondition(format string, args ...any) error {
	return newErr(ErrPrecondition, format, args...)
}

// Invalid returns an ErrValidation error.
func Invalid(format string, args ...any) error {
	return newErr(ErrValidation, format, args...)
}

// Forbidden returns an ErrForbidden error.
func Forbidden(format string, args ...any) error {
	return newErr(ErrForbidden, format, args...)
}

// NotImplemented returns an ErrNotImplemented error.
func NotImplemented(format string, args ...any) error {
	return newErr(ErrNotImplemented, format, args...)
}

// Unavailable returns an ErrUnavailable error.
func Unavailable(format string, args ...any) error {
	return newErr(ErrUnavailable, format, args...)
}

// Internal returns an ErrInternal error.
func Internal(format string, args ...any) error {
	return newErr(ErrInternal, format, args...)
}
