package browser

import (
	"errors"
	"fmt"

	"github.com/odvcencio/reqguard/pkg/locator"
)

var (
	ErrUnavailable      = errors.New("browser runtime unavailable")
	ErrSessionClosed    = errors.New("browser session closed")
	ErrElementNotFound  = errors.New("element not found")
	ErrOperationTimeout = errors.New("operation timeout")
	ErrUnsupported      = errors.New("operation not supported by driver")
)

// ActionError wraps a driver failure with the operation that caused it.
type ActionError struct {
	Op      string
	Locator locator.Locator
	Err     error
}

func (e *ActionError) Error() string {
	if !e.Locator.IsZero() {
		return fmt.Sprintf("browser %s %s: %v", e.Op, e.Locator, e.Err)
	}
	return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// NewActionError creates an ActionError for op.
func NewActionError(op string, loc locator.Locator, err error) *ActionError {
	return &ActionError{Op: op, Locator: loc, Err: err}
}

// IsActionError reports whether err came from a driver action.
func IsActionError(err error) bool {
	var actionErr *ActionError
	return errors.As(err, &actionErr)
}

// IsRetryableError returns true if the error might succeed on retry.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOperationTimeout) || errors.Is(err, ErrElementNotFound) {
		return true
	}
	return false
}
