package testutil

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/roach88/noddymc/internal/config"
)

// Call records one invocation of FakeRunner.
type Call struct {
	Kind    string // "model" or "topology"
	History string
	Prefix  string
	Mode    config.Mode
}

// FakeRunner stands in for the external simulator.
//
// ComputeModel writes prefix.g01 and ComputeTopology writes prefix.g23, so
// the files the real tools would leave behind exist after each call.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Call

	// TopologyContent returns the .g23 body for a prefix. Defaults to the prefix.
	TopologyContent func(prefix string) string

	// FailModelOn makes ComputeModel fail for this prefix.
	FailModelOn string
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// ComputeModel records the call and writes the model marker file.
func (f *FakeRunner) ComputeModel(ctx context.Context, historyPath, outputPrefix string, mode config.Mode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.record(Call{Kind: "model", History: historyPath, Prefix: outputPrefix, Mode: mode})

	if f.FailModelOn != "" && f.FailModelOn == outputPrefix {
		return "simulated failure", fmt.Errorf("noddy failed for %s", outputPrefix)
	}
	if _, err := os.Stat(historyPath); err != nil {
		return "", fmt.Errorf("history not found: %w", err)
	}
	if err := os.WriteFile(outputPrefix+".g01", []byte(mode), 0644); err != nil {
		return "", err
	}
	return "ok", nil
}

// ComputeTopology records the call and writes the topology file.
func (f *FakeRunner) ComputeTopology(ctx context.Context, outputPrefix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.record(Call{Kind: "topology", Prefix: outputPrefix})

	content := outputPrefix
	if f.TopologyContent != nil {
		content = f.TopologyContent(outputPrefix)
	}
	if err := os.WriteFile(outputPrefix+".g23", []byte(content), 0644); err != nil {
		return "", err
	}
	return "ok", nil
}

func (f *FakeRunner) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Calls returns a copy of the recorded calls in invocation order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many calls of the given kind were recorded.
func (f *FakeRunner) Count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Prefixes returns the sorted prefixes passed to calls of the given kind.
func (f *FakeRunner) Prefixes(kind string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Kind == kind {
			out = append(out, c.Prefix)
		}
	}
	sort.Strings(out)
	return out
}

// Reset clears recorded calls.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
