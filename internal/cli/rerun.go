package cli

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/noddymc/internal/config"
	"github.com/roach88/noddymc/internal/engine"
	"github.com/roach88/noddymc/internal/ir"
	"github.com/roach88/noddymc/internal/runner"
)

// RerunOptions holds flags for the rerun command.
type RerunOptions struct {
	*RootOptions
	Workers      int
	Mode         string
	Force        bool
	NoddyPath    string
	TopologyPath string
}

// RerunResult summarizes a rerun.
type RerunResult struct {
	Root      string `json:"root"`
	Histories int    `json:"histories"`
	Complete  int    `json:"complete"`
	Skipped   int    `json:"skipped"`
}

func (r RerunResult) String() string {
	return fmt.Sprintf("✓ %d histories under %s (%d run, %d skipped)", r.Histories, r.Root, r.Complete, r.Skipped)
}

// NewRerunCommand creates the rerun command.
func NewRerunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RerunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rerun <dir>",
		Short: "Run the simulator on existing history files",
		Long: `Run the simulator on every .his file found under a directory.

Histories whose model output already exists are skipped unless --force. In
TOPOLOGY mode missing topologies are computed as well.

Example:
  noddymc rerun mc_out --workers 8 --mode TOPOLOGY`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRerun(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", config.DefaultWorkers, "number of concurrent simulator processes")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(config.DefaultMode), fmt.Sprintf("simulation mode %v", config.ValidModes))
	cmd.Flags().BoolVar(&opts.Force, "force", false, "recompute outputs that already exist")
	cmd.Flags().StringVar(&opts.NoddyPath, "noddy", config.DefaultNoddyPath, "Noddy simulator executable")
	cmd.Flags().StringVar(&opts.TopologyPath, "topology-bin", config.DefaultTopologyPath, "topology extractor executable")

	return cmd
}

func runRerun(opts *RerunOptions, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	mode, err := config.ParseMode(opts.Mode)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Workers < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "workers must be at least 1", nil)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	r := opts.Runner
	if r == nil {
		r = runner.NewExecRunner(opts.NoddyPath, opts.TopologyPath)
	}
	o := engine.New(r,
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(prometheus.NewRegistry())),
	)

	recs, err := o.RerunHistories(ctx, root, engine.RerunOptions{
		Workers: opts.Workers,
		Mode:    mode,
		Force:   opts.Force,
	})
	if err != nil {
		return experimentError(formatter, err)
	}

	res := RerunResult{Root: strings.TrimRight(root, "/"), Histories: len(recs)}
	for _, rec := range recs {
		switch rec.Status {
		case ir.StatusComplete:
			res.Complete++
		case ir.StatusSkipped:
			res.Skipped++
		}
	}
	return formatter.Success(res)
}
