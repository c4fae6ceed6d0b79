package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/noddymc/internal/config"
	"github.com/roach88/noddymc/internal/engine"
	"github.com/roach88/noddymc/internal/ir"
	"github.com/roach88/noddymc/internal/runner"
	"github.com/roach88/noddymc/internal/sampler"
	"github.com/roach88/noddymc/internal/store"
	"github.com/roach88/noddymc/internal/topology"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	ConfigPath  string
	MetricsAddr string

	// flags holds values given on the command line; only flags the user
	// actually set override the configuration file.
	flags config.Experiment

	// IDGenerator allows overriding the experiment ID source (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// GenerateResult summarizes a finished experiment.
type GenerateResult struct {
	ExperimentID string          `json:"experiment_id"`
	OutputDir    string          `json:"output_dir"`
	Mode         string          `json:"mode"`
	Seed         int64           `json:"seed"`
	Runs         int             `json:"runs"`
	Complete     int             `json:"complete"`
	Skipped      int             `json:"skipped"`
	Workers      []WorkerSummary `json:"workers"`
}

// WorkerSummary describes the share of one worker.
type WorkerSummary struct {
	Worker int    `json:"worker"`
	Dir    string `json:"dir"`
	Runs   int    `json:"runs"`
}

func (r GenerateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Experiment %s finished\n", r.ExperimentID)
	fmt.Fprintf(&b, "  output:  %s\n", r.OutputDir)
	fmt.Fprintf(&b, "  mode:    %s\n", r.Mode)
	fmt.Fprintf(&b, "  seed:    %d\n", r.Seed)
	fmt.Fprintf(&b, "  runs:    %d (%d complete, %d skipped)\n", r.Runs, r.Complete, r.Skipped)
	for _, w := range r.Workers {
		fmt.Fprintf(&b, "  worker %d: %d run(s) in %s\n", w.Worker, w.Runs, w.Dir)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run a Monte Carlo experiment",
		Long: `Run a Monte Carlo experiment around a Noddy history.

Settings come from a YAML or HCL configuration file (--config); any flag
given on the command line overrides the matching setting. Each of the
--runs models is written as <out>/<node>/thread_<i>/<base-name>_NNNN.his and
passed to the simulator. Existing model output is skipped unless --force.

Example:
  noddymc generate --config experiment.yaml
  noddymc generate --history foldUC.his --params foldUC_params.csv \
      --out mc_out --runs 100 --workers 4 --mode TOPOLOGY --changes params`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "experiment configuration file (.yaml, .yml, .hcl)")
	f.StringVar(&opts.flags.History, "history", "", "base Noddy history file")
	f.StringVar(&opts.flags.Parameters, "params", "", "parameter perturbation CSV file")
	f.StringVar(&opts.flags.BaseName, "base-name", config.DefaultBaseName, "file name stem of generated models")
	f.StringVar(&opts.flags.OutputDir, "out", "", "output directory")
	f.IntVarP(&opts.flags.Runs, "runs", "n", 0, "number of models to generate")
	f.IntVarP(&opts.flags.Workers, "workers", "w", config.DefaultWorkers, "number of concurrent workers")
	f.StringVar(&opts.flags.Mode, "mode", string(config.DefaultMode), fmt.Sprintf("simulation mode %v", config.ValidModes))
	f.BoolVar(&opts.flags.Force, "force", false, "recompute models whose output already exists")
	f.StringVar(&opts.flags.ChangeLog, "changes", "", "write sampled parameters to <changes>.csv (or <changes>_thread<i>.csv)")
	f.Int64Var(&opts.flags.Seed, "seed", 0, "random seed (0 picks one and reports it)")
	f.BoolVar(&opts.flags.FlatOutput, "flat", false, "do not add a per-host directory under --out")
	f.StringVar(&opts.flags.NoddyPath, "noddy", config.DefaultNoddyPath, "Noddy simulator executable")
	f.StringVar(&opts.flags.TopologyPath, "topology-bin", config.DefaultTopologyPath, "topology extractor executable")
	f.StringVar(&opts.flags.Database, "db", "", "record provenance in this SQLite database")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	exp, err := loadExperiment(opts, cmd)
	if err != nil {
		return experimentError(formatter, err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose || exp.Verbose)
	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithIDGenerator(opts.IDGenerator),
	}

	if exp.Database != "" {
		st, err := store.Open(exp.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithRecorder(st))
	}

	reg := prometheus.NewRegistry()
	engineOpts = append(engineOpts, engine.WithMetrics(engine.NewMetrics(reg)))
	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, reg, logger)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to start metrics server", err)
		}
		defer stop()
	}

	r := opts.Runner
	if r == nil {
		r = runner.NewExecRunner(exp.NoddyPath, exp.TopologyPath)
	}

	res, err := engine.New(r, engineOpts...).Run(ctx, exp)
	if err != nil {
		return experimentError(formatter, err)
	}

	out := GenerateResult{
		ExperimentID: res.ExperimentID,
		OutputDir:    res.OutputDir,
		Mode:         exp.Mode,
		Seed:         res.Seed,
		Runs:         len(res.Runs),
		Complete:     res.Count(ir.StatusComplete),
		Skipped:      res.Count(ir.StatusSkipped),
	}
	for _, c := range res.Chunks {
		out.Workers = append(out.Workers, WorkerSummary{Worker: c.Worker, Dir: c.Dir, Runs: c.Count})
	}
	return formatter.Success(out)
}

// loadExperiment reads the configuration file, if any, and overlays the flags
// the user set.
func loadExperiment(opts *GenerateOptions, cmd *cobra.Command) (*config.Experiment, error) {
	exp := &config.Experiment{}
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		exp = loaded
	}

	f := cmd.Flags()
	src := &opts.flags
	if f.Changed("history") {
		exp.History = src.History
	}
	if f.Changed("params") {
		exp.Parameters = src.Parameters
		exp.ParameterTable = nil
	}
	if f.Changed("base-name") {
		exp.BaseName = src.BaseName
	}
	if f.Changed("out") {
		exp.OutputDir = src.OutputDir
	}
	if f.Changed("runs") {
		exp.Runs = src.Runs
	}
	if f.Changed("workers") {
		exp.Workers = src.Workers
	}
	if f.Changed("mode") {
		exp.Mode = src.Mode
	}
	if f.Changed("force") {
		exp.Force = src.Force
	}
	if f.Changed("changes") {
		exp.ChangeLog = src.ChangeLog
	}
	if f.Changed("seed") {
		exp.Seed = src.Seed
	}
	if f.Changed("flat") {
		exp.FlatOutput = src.FlatOutput
	}
	if f.Changed("noddy") {
		exp.NoddyPath = src.NoddyPath
	}
	if f.Changed("topology-bin") {
		exp.TopologyPath = src.TopologyPath
	}
	if f.Changed("db") {
		exp.Database = src.Database
	}

	if err := exp.Finalize(); err != nil {
		return nil, err
	}
	return exp, nil
}

// serveMetrics exposes reg on addr until the returned stop function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// experimentError reports err and maps it to an exit code.
func experimentError(f *OutputFormatter, err error) error {
	var (
		verrs config.ValidationErrors
		cerr  *sampler.ConfigError
	)
	switch {
	case errors.As(err, &verrs):
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	case errors.As(err, &cerr):
		return f.Fail(ExitCommandError, ErrCodeParameters, "invalid parameter spec", err)
	case errors.Is(err, context.Canceled):
		return f.Fail(ExitFailure, ErrCodeInterrupted, "interrupted", err)
	case engine.IsRunError(err):
		return f.Fail(ExitFailure, ErrCodeRunFailed, "run failed", err)
	case errors.Is(err, fs.ErrNotExist):
		return f.Fail(ExitCommandError, ErrCodeNotFound, "file not found", err)
	case errors.Is(err, topology.ErrNotImplemented):
		return f.Fail(ExitFailure, ErrCodeNotSupported, "not supported", err)
	default:
		return f.Fail(ExitFailure, ErrCodeGeneric, "experiment failed", err)
	}
}
