package apperrors

import "errors"

// Process exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitRender        = 3
	ExitWrite         = 4
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, ErrRender):
		return ExitRender
	case errors.Is(err, ErrWrite):
		return ExitWrite
	default:
		return ExitFailure
	}
}
