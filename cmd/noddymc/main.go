// Command noddymc runs Monte Carlo experiments around the Noddy geological
// simulator.
//
// Usage:
//
//	noddymc [--verbose] [--format text|json] <command> [flags]
//
// Commands:
//
//	generate  Perturb a history and run the simulator on every realisation
//	rerun     Run the simulator on existing history files
//	topology  Group identical topologies of an experiment
//	validate  Check an experiment configuration
package main

import (
	"fmt"
	"os"

	"github.com/roach88/noddymc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
