package defect

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQueryFilter is returned when a select-all filter payload is
	// missing or cannot be decoded.
	ErrInvalidQueryFilter = errors.New("invalid defect query filter")

	// ErrUnknownOperation is returned when a batch names an operation kind
	// that has no registered implementation.
	ErrUnknownOperation = errors.New("unknown batch operation")

	// ErrInvalidStatusTransition is returned when a mutation is attempted on a
	// defect whose current status does not allow it.
	ErrInvalidStatusTransition = errors.New("invalid defect status transition")

	// ErrDefectNotFound is returned when an update targets a defect that no
	// longer exists.
	ErrDefectNotFound = errors.New("defect not found")
)

// ErrorKind classifies failures raised by the batch core itself.
type ErrorKind string

// ErrorKindInvalidArgument marks a client error that must be fixed before the
// request is resubmitted.
const ErrorKindInvalidArgument ErrorKind = "INVALID_ARGUMENT"

// BatchError is a failure produced by batch validation. Store and mutation
// failures are never wrapped in a BatchError; they are returned as-is.
type BatchError struct {
	Kind ErrorKind
	Err  error
}

// NewInvalidArgument wraps err as an InvalidArgument batch failure.
func NewInvalidArgument(err error) *BatchError {
	return &BatchError{Kind: ErrorKindInvalidArgument, Err: err}
}

// Error implements the error interface.
func (e *BatchError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

// Unwrap returns the underlying cause.
func (e *BatchError) Unwrap() error { return e.Err }

// IsInvalidArgument reports whether err is, or wraps, an InvalidArgument
// batch failure.
func IsInvalidArgument(err error) bool {
	var be *BatchError
	return errors.As(err, &be) && be.Kind == ErrorKindInvalidArgument
}
