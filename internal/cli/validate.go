package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/noddymc/internal/config"
	"github.com/roach88/noddymc/internal/engine"
	"github.com/roach88/noddymc/internal/history"
	"github.com/roach88/noddymc/internal/sampler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                      `json:"valid"`
	Parameters int                       `json:"parameters,omitempty"`
	Events     int                       `json:"events,omitempty"`
	Errors     []*config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Check an experiment configuration without running it",
		Long: `Check an experiment configuration without running the simulator.

Validates the file against the configuration schema, parses the parameter
spec, and checks that every perturbed parameter exists in the history.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	exp, err := config.Load(path)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs)
		}
		return experimentError(formatter, err)
	}
	formatter.VerboseLog("Loaded %s (mode %s, %d runs, %d workers)", path, exp.Mode, exp.Runs, exp.Workers)

	spec, err := sampler.Load(exp)
	if err != nil {
		return experimentError(formatter, err)
	}
	h, err := history.ReadFile(exp.History)
	if err != nil {
		return experimentError(formatter, err)
	}
	if err := engine.CheckSpec(spec, h, exp.Parameters); err != nil {
		return experimentError(formatter, err)
	}

	result := ValidationResult{Valid: true, Parameters: len(spec.Rows), Events: len(h.Events)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Configuration valid (%d parameters over %d events)\n", result.Parameters, result.Events)
	return nil
}

// outputValidationErrors outputs every schema violation.
func outputValidationErrors(formatter *OutputFormatter, errs config.ValidationErrors) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeConfig, errs[0].Error(), ValidationResult{Valid: false, Errors: errs})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, e := range errs {
			if e.Field != "" {
				fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Field, e.Message)
				continue
			}
			fmt.Fprintf(formatter.Writer, "  %s\n", e.Message)
		}
	}

	e := NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	e.reported = true
	return e
}
