package assess

import (
	"errors"
	"fmt"
)

// ErrInvalidInput matches every *InputError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// ErrTaskPanicked wraps the value recovered from a panicking stage task.
var ErrTaskPanicked = errors.New("task panicked")

// InputError reports a malformed argument to Analyze. It is never retried.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }
