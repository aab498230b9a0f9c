package errs

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled marks a tick aborted because the coordinator is shutting down
// or an external call was interrupted.
var ErrCancelled = errors.New("coordinator cancelled")

// ErrCoordinatorStopped is returned when Run is called on a coordinator that already stopped.
var ErrCoordinatorStopped = errors.New("coordinator already stopped")

var ErrRecordNotFound = errors.New("record not found")
var ErrInvalidConfig = errors.New("invalid configuration")

var errorInvalidParamFmt = "invalid request params: %s %v"
var errorRecordNotFoundFmt = "%s not found by %s"
var errorMissingParamFmt = "missing required param: %s"

func NewInvalidParamErr(name string, value interface{}) error {
	return fmt.Errorf(errorInvalidParamFmt, name, value)
}

func NewRecordNotFoundErr(name string, value interface{}) error {
	return fmt.Errorf(errorRecordNotFoundFmt+": %w", name, value, ErrRecordNotFound)
}

func NewMissingParamError(name string) error {
	return fmt.Errorf(errorMissingParamFmt, name)
}

// NewCancelledErr wraps cause so that both errors.Is(err, ErrCancelled) and
// errors.Is(err, cause) hold.
func NewCancelledErr(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// IsCancelled reports whether err means the current work must stop for good.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
