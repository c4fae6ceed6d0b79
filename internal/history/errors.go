package history

import (
	"errors"
	"fmt"
)

// LookupError reports an event or parameter reference that does not resolve.
type LookupError struct {
	Event     string
	Parameter string
	Ambiguous bool
}

func (e *LookupError) Error() string {
	switch {
	case e.Ambiguous:
		return fmt.Sprintf("event %q is ambiguous: more than one event of that kind", e.Event)
	case e.Parameter != "":
		return fmt.Sprintf("event %q has no numeric parameter %q", e.Event, e.Parameter)
	default:
		return fmt.Sprintf("event %q not found", e.Event)
	}
}

// IsLookupError reports whether err is or wraps a *LookupError.
func IsLookupError(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}
