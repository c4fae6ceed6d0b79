package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/roach88/noddymc/internal/config"
)

// Runner executes the external simulator and topology extractor.
// Both calls are synchronous and return the tool's combined output.
type Runner interface {
	ComputeModel(ctx context.Context, historyPath, outputPrefix string, mode config.Mode) (string, error)
	ComputeTopology(ctx context.Context, outputPrefix string) (string, error)
}

// ExecRunner invokes the Noddy and topology executables as subprocesses.
type ExecRunner struct {
	NoddyPath    string
	TopologyPath string
}

// NewExecRunner creates a runner for the given executables.
// Empty paths fall back to the defaults resolved through $PATH.
func NewExecRunner(noddyPath, topologyPath string) *ExecRunner {
	if noddyPath == "" {
		noddyPath = config.DefaultNoddyPath
	}
	if topologyPath == "" {
		topologyPath = config.DefaultTopologyPath
	}
	return &ExecRunner{NoddyPath: noddyPath, TopologyPath: topologyPath}
}

// ComputeModel runs `noddy <history> <prefix> <MODE>`.
func (r *ExecRunner) ComputeModel(ctx context.Context, historyPath, outputPrefix string, mode config.Mode) (string, error) {
	return run(ctx, r.NoddyPath, historyPath, outputPrefix, string(mode))
}

// ComputeTopology runs `topology <prefix>`.
func (r *ExecRunner) ComputeTopology(ctx context.Context, outputPrefix string) (string, error) {
	return run(ctx, r.TopologyPath, outputPrefix)
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if err != nil {
		perr := &ProcessError{
			Command:  strings.Join(append([]string{name}, args...), " "),
			ExitCode: -1,
			Output:   output,
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			perr.Err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return output, perr
	}
	return output, nil
}
