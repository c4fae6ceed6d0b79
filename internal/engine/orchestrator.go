package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/noddymc/internal/config"
	"github.com/roach88/noddymc/internal/history"
	"github.com/roach88/noddymc/internal/ir"
	"github.com/roach88/noddymc/internal/runner"
	"github.com/roach88/noddymc/internal/sampler"
)

// Recorder persists experiment provenance. *store.Store implements it.
//
// Implementations must be safe for concurrent use; every worker records its
// own runs.
type Recorder interface {
	CreateExperiment(ctx context.Context, exp ir.ExperimentRecord) error
	RecordRun(ctx context.Context, run ir.RunRecord) error
	FinishExperiment(ctx context.Context, id string) error
}

type nopRecorder struct{}

func (nopRecorder) CreateExperiment(context.Context, ir.ExperimentRecord) error { return nil }
func (nopRecorder) RecordRun(context.Context, ir.RunRecord) error               { return nil }
func (nopRecorder) FinishExperiment(context.Context, string) error              { return nil }

// Orchestrator runs Monte Carlo experiments against a Runner.
//
// Thread-safety: an Orchestrator holds no per-experiment state; Run and
// Rerun may be called concurrently as long as the experiments write to
// different directories.
type Orchestrator struct {
	runner   runner.Runner
	recorder Recorder
	metrics  *Metrics
	logger   *slog.Logger
	ids      IDGenerator
	nodeName func() (string, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder persists experiments and runs to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithMetrics updates m while experiments run.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator sets the experiment ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithNodeName fixes the node directory name instead of using the host name.
// An empty name disables the node directory.
func WithNodeName(name string) Option {
	return func(o *Orchestrator) {
		o.nodeName = func() (string, error) { return name, nil }
	}
}

// New creates an Orchestrator that executes runs with r.
func New(r runner.Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:   r,
		recorder: nopRecorder{},
		metrics:  NewMetrics(nil),
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		nodeName: defaultNodeName,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// defaultNodeName groups output by host on Linux, where experiments are
// typically spread over cluster nodes sharing one file system.
func defaultNodeName() (string, error) {
	if runtime.GOOS != "linux" {
		return "", nil
	}
	return os.Hostname()
}

// Result summarizes an experiment.
type Result struct {
	ExperimentID string
	// OutputDir is the directory the chunks were written under, including
	// the node directory when one was used.
	OutputDir string
	Seed      int64
	Chunks    []Chunk
	// Runs holds every recorded run ordered by worker, then instance.
	Runs []ir.RunRecord
}

// Count returns the number of runs with the given status.
func (r *Result) Count(status ir.RunStatus) int {
	n := 0
	for _, run := range r.Runs {
		if run.Status == status {
			n++
		}
	}
	return n
}

// Run executes the experiment described by exp.
//
// Configuration problems (unknown mode, malformed parameter spec, parameters
// missing from the history) are returned before any run starts. Once workers
// are running, the first failure cancels the others; the returned Result
// still lists every run recorded up to that point.
func (o *Orchestrator) Run(ctx context.Context, exp *config.Experiment) (*Result, error) {
	mode, err := exp.SimMode()
	if err != nil {
		return nil, err
	}
	spec, err := sampler.Load(exp)
	if err != nil {
		return nil, err
	}
	base, err := history.ReadFile(exp.History)
	if err != nil {
		return nil, err
	}
	if err := CheckSpec(spec, base, exp.Parameters); err != nil {
		return nil, err
	}

	root, err := o.outputRoot(exp)
	if err != nil {
		return nil, err
	}
	chunks, err := Partition(root, exp.Runs, exp.Workers)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if err := os.MkdirAll(c.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	seed := exp.Seed
	if seed == 0 {
		seed = rand.Int64N(math.MaxInt64-1) + 1
	}

	var buf bytes.Buffer
	if _, err := base.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("digest history: %w", err)
	}

	result := &Result{
		ExperimentID: o.ids.Generate(),
		OutputDir:    root,
		Seed:         seed,
		Chunks:       chunks,
	}
	header := ir.ExperimentRecord{
		ID:         result.ExperimentID,
		History:    exp.History,
		BaseDigest: ir.HistoryDigest(buf.Bytes()),
		BaseName:   exp.BaseName,
		OutputDir:  root,
		Runs:       exp.Runs,
		Workers:    exp.Workers,
		Mode:       string(mode),
		Seed:       seed,
		Force:      exp.Force,
	}
	if err := o.recorder.CreateExperiment(ctx, header); err != nil {
		return nil, fmt.Errorf("record experiment: %w", err)
	}

	logger := o.logger.With("experiment", result.ExperimentID)
	logger.Info("starting experiment",
		"runs", exp.Runs,
		"workers", exp.Workers,
		"mode", mode,
		"seed", seed,
		"output", root,
	)

	perWorker := make([][]ir.RunRecord, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks {
		task := WorkerTask{
			ExperimentID: result.ExperimentID,
			Chunk:        c,
			BaseName:     exp.BaseName,
			Mode:         mode,
			Force:        exp.Force,
		}
		if exp.ChangeLog != "" {
			task.ChangeLog = ChangeLogPath(exp.ChangeLog, c.Worker, len(chunks))
		}
		w := &worker{
			task:     task,
			history:  base.Clone(),
			sampler:  sampler.New(spec, seed, uint64(c.Worker)),
			rows:     spec.Rows,
			runner:   o.runner,
			recorder: o.recorder,
			metrics:  o.metrics,
			logger:   logger.With("worker", c.Worker),
		}
		g.Go(func() error {
			recs, err := w.run(gctx)
			perWorker[task.Chunk.Worker] = recs
			return err
		})
	}
	runErr := g.Wait()

	for _, recs := range perWorker {
		result.Runs = append(result.Runs, recs...)
	}

	if runErr != nil {
		logger.Error("experiment failed", "error", runErr)
		return result, runErr
	}
	if err := o.recorder.FinishExperiment(ctx, result.ExperimentID); err != nil {
		return result, fmt.Errorf("record experiment: %w", err)
	}
	logger.Info("experiment complete",
		"complete", result.Count(ir.StatusComplete),
		"skipped", result.Count(ir.StatusSkipped),
	)
	return result, nil
}

func (o *Orchestrator) outputRoot(exp *config.Experiment) (string, error) {
	if exp.FlatOutput {
		return exp.OutputDir, nil
	}
	name, err := o.nodeName()
	if err != nil {
		return "", fmt.Errorf("resolve node name: %w", err)
	}
	if name == "" {
		return exp.OutputDir, nil
	}
	return filepath.Join(exp.OutputDir, name), nil
}

// CheckSpec verifies that every row of spec names a numeric parameter of h.
// source is the parameter file, empty for inline tables.
func CheckSpec(spec *sampler.Spec, h *history.History, source string) error {
	for i, row := range spec.Rows {
		_, err := h.Get(row.Event, row.Parameter)
		if err == nil {
			continue
		}
		ce := &sampler.ConfigError{Source: source, Line: row.Line, Field: "event", Message: err.Error()}
		if row.Line == 0 {
			ce.Row = i + 1
		}
		var le *history.LookupError
		if errors.As(err, &le) && le.Parameter != "" {
			ce.Field = "parameter"
		}
		return ce
	}
	return nil
}
