package types

import (
	"errors"
	"fmt"
)

// ErrCancelled marks an operation interrupted by a cancel signal. It
// surfaces as an ABORTED result in computations.
var ErrCancelled = errors.New("cancelled")

// UserError is a bad request by the caller that asked for a mutation:
// bad name, duplicate name, forbidden child type, disabled ancestor.
// It is surfaced to the caller and never logged as a warning.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// NewUserError builds a UserError with a formatted message.
func NewUserError(format string, args ...any) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// InvariantError reports a broken on-disk invariant, such as a
// directory-name collision during load. The offending child is skipped.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string { return e.Detail }

// NewInvariantError builds an InvariantError with a formatted detail.
func NewInvariantError(format string, args ...any) *InvariantError {
	return &InvariantError{Detail: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is a user-visible request error.
func IsUser(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsCancelled reports whether err carries a cancel signal.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
