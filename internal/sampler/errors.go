package sampler

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a malformed parameter specification.
type ConfigError struct {
	Source  string // file path, empty for inline tables
	Line    int    // 1-based CSV line, 0 if unknown
	Row     int    // 1-based inline table row, 0 if unknown
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("parameter spec")
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	switch {
	case e.Line > 0:
		fmt.Fprintf(&b, " line %d", e.Line)
	case e.Row > 0:
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
