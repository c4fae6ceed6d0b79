package config

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError reports a configuration that cannot be used.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
	}
	return "invalid config: " + e.Message
}

// ValidationErrors collects every problem found in one configuration.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	schemaOnce sync.Once
	cueCtx     *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

func experimentSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Experiment"))
	})
	return cueCtx, schemaDef, schemaErr
}

// Validate checks exp against the embedded CUE schema and the cross-field
// rules the schema cannot express. It expects defaults to be applied.
func Validate(exp *Experiment) error {
	ctx, schema, err := experimentSchema()
	if err != nil {
		return err
	}

	var errs ValidationErrors

	schemaMu.Lock()
	val := schema.Unify(ctx.Encode(exp))
	cueErr := val.Validate(cue.Concrete(true))
	schemaMu.Unlock()

	if cueErr != nil {
		for _, ce := range cueerrors.Errors(cueErr) {
			format, args := ce.Msg()
			errs = append(errs, &ValidationError{
				Field:   strings.Join(ce.Path(), "."),
				Message: fmt.Sprintf(format, args...),
			})
		}
	}

	switch {
	case exp.Parameters == "" && len(exp.ParameterTable) == 0:
		errs = append(errs, &ValidationError{Field: "parameters", Message: "either a parameter file or a parameter table is required"})
	case exp.Parameters != "" && len(exp.ParameterTable) > 0:
		errs = append(errs, &ValidationError{Field: "parameters", Message: "parameter file and parameter table are mutually exclusive"})
	}

	for i, row := range exp.ParameterTable {
		field := fmt.Sprintf("parameter_table.%d", i)
		if (row.HalfWidth == nil) == (row.StdDev == nil) {
			errs = append(errs, &ValidationError{
				Field:   field,
				Message: `exactly one of "+-" and "stdev" must be set`,
			})
		}
		for _, d := range []struct {
			name string
			v    *float64
		}{{"+-", row.HalfWidth}, {"stdev", row.StdDev}} {
			if d.v != nil && !(*d.v > 0 && !math.IsInf(*d.v, 0)) {
				errs = append(errs, &ValidationError{
					Field:   field + "." + d.name,
					Message: "must be a positive number",
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
