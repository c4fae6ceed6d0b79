package engine

import (
	"errors"
	"fmt"
)

// RunError reports a run that failed because a collaborator failed.
//
// The wrapped error is usually a *runner.ProcessError or a filesystem error.
type RunError struct {
	// Worker is the index of the worker that owned the run, or -1 for
	// re-runs of existing histories.
	Worker int

	// Instance is the 1-based instance number within the worker.
	Instance int

	// Prefix is the output path of the run without extension.
	Prefix string

	// Stage names the step that failed: "history", "record", "model" or
	// "topology".
	Stage string

	Err error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Worker < 0 {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Prefix, e.Err)
	}
	return fmt.Sprintf("worker %d instance %d: %s %s: %v", e.Worker, e.Instance, e.Stage, e.Prefix, e.Err)
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsRunError reports whether err is or wraps a *RunError.
func IsRunError(err error) bool {
	var re *RunError
	return errors.As(err, &re)
}
