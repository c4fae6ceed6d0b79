package runner

import (
	"errors"
	"fmt"
)

// ProcessError reports a failed external tool invocation.
type ProcessError struct {
	Command  string
	ExitCode int // -1 if the process did not exit normally
	Output   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: exit %d: %v: %s", e.Command, e.ExitCode, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: exit %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsProcessError reports whether err is or wraps a *ProcessError.
func IsProcessError(err error) bool {
	var pe *ProcessError
	return errors.As(err, &pe)
}
