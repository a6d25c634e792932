// Package exitcode provides the process exit codes used by the codescore CLI.
package exitcode

import (
	"errors"
	"os"
)

const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	GateFailed      = 3 // quality gate denied the report
	FileSystemError = 4
	InvalidInput    = 5
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case GateFailed:
		return "Quality gate failed"
	case FileSystemError:
		return "File system error"
	case InvalidInput:
		return "Invalid input"
	default:
		return "Unknown error"
	}
}

// Error carries an exit code through cobra's RunE.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return String(e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches an exit code to err. A nil err stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// FromError picks the exit code for err, defaulting to GeneralError.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	var pe *os.PathError
	if errors.As(err, &pe) {
		return FileSystemError
	}
	return GeneralError
}
