package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrInvalidSubmission is returned synchronously from AddTask when a
	// dep belongs to a different TaskGraph, a target path is empty, or
	// some other option is malformed.
	ErrInvalidSubmission = zerr.New("invalid submission")

	// ErrGraphClosed is returned from AddTask once Close has been called.
	ErrGraphClosed = zerr.New("graph closed")

	// ErrGraphTerminated is returned from AddTask once a task failure has
	// already surfaced through Join.
	ErrGraphTerminated = zerr.New("graph terminated")

	// ErrMissingTargetOutput is returned when a task function returns
	// successfully but a declared target path does not exist afterward.
	// It is treated as a task failure subject to the retry policy.
	ErrMissingTargetOutput = zerr.New("missing target output")

	// ErrDuplicateTargetMismatch is returned when two submissions share a
	// fingerprint but declare different target path sets.
	ErrDuplicateTargetMismatch = zerr.New("duplicate target mismatch")

	// ErrUserTaskFailure wraps any error raised by a task's function.
	ErrUserTaskFailure = zerr.New("user task failure")
)

// WrapUserFailure ties err to ErrUserTaskFailure so that errors.Is and
// errors.As reach both the sentinel and the caller's original error.
func WrapUserFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrUserTaskFailure, err)
}
