package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/noddymc/internal/ir"
	"github.com/roach88/noddymc/internal/store"
	"github.com/roach88/noddymc/internal/topology"
)

// TopologyOptions holds flags for the topology command.
type TopologyOptions struct {
	*RootOptions
	Accumulate string
	Database   string
	Models     bool
}

// TopologyResult lists the distinct topologies of a result tree.
type TopologyResult struct {
	ScanID  string             `json:"scan_id,omitempty"`
	Root    string             `json:"root"`
	Total   int                `json:"total"`
	Classes []ir.TopologyClass `json:"classes"`
	// Missing lists runs with model output but no topology.
	Missing []string           `json:"missing,omitempty"`
}

func (r TopologyResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d topologies, %d unique", r.Total, len(r.Classes))
	for i, c := range r.Classes {
		fmt.Fprintf(&b, "\n  %3d  %5d  %s", i+1, c.Count, c.Representative)
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "\n%d run(s) without topology, first: %s", len(r.Missing), r.Missing[0])
	}
	return b.String()
}

// NewTopologyCommand creates the topology command.
func NewTopologyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TopologyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "topology <dir>",
		Short: "Find the distinct topologies of an experiment",
		Long: `Load every .g23 topology file under a directory and group identical ones.

Classes are listed most frequent first, each with a representative run.

Example:
  noddymc topology mc_out --accumulate accumulate.csv
  noddymc topology mc_out --db experiments.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopology(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Accumulate, "accumulate", "", "write the class table to this CSV file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the scan in this SQLite database")
	cmd.Flags().BoolVar(&opts.Models, "models", false, "also load the block models of every run")

	return cmd
}

func runTopology(opts *TopologyOptions, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	items, err := topology.LoadTopologies(ctx, root)
	if err != nil {
		return experimentError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d topologies from %s", len(items), root)

	if opts.Models {
		if _, err := topology.LoadModelRealisations(ctx, root); err != nil {
			return experimentError(formatter, err)
		}
	}

	res := TopologyResult{
		Root:    root,
		Total:   len(items),
		Classes: topology.Deduplicate(items, topology.ContentKey),
	}

	models, err := topology.ListModelOutputs(ctx, root)
	if err != nil {
		return experimentError(formatter, err)
	}
	have := make(map[string]bool, len(items))
	for _, t := range items {
		have[t.Base] = true
	}
	for _, base := range models {
		if !have[base] {
			res.Missing = append(res.Missing, base)
		}
	}

	if opts.Accumulate != "" {
		if err := topology.WriteAccumulateCSV(opts.Accumulate, res.Classes); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "failed to write accumulate file", err)
		}
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer st.Close()

		res.ScanID = uuid.Must(uuid.NewV7()).String()
		if err := st.WriteTopologyScan(ctx, res.ScanID, root, res.Total, res.Classes); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStore, "failed to record scan", err)
		}
	}

	return formatter.Success(res)
}
