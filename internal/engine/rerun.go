package engine

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/noddymc/internal/config"
	"github.com/roach88/noddymc/internal/ir"
)

// RerunOptions controls RerunHistories.
type RerunOptions struct {
	// Workers bounds how many histories are simulated at once.
	Workers int
	Mode    config.Mode
	// Force recomputes outputs that already exist.
	Force bool
}

// RerunHistories runs every *.his file under root through the simulator.
//
// A history whose model output (.g01) exists is skipped unless Force is set.
// In topology mode the topology (.g23) is computed the same way, so a tree
// that only lacks topologies gets just those. Runs are returned in path
// order with Worker set to -1 and Instance to their position.
func (o *Orchestrator) RerunHistories(ctx context.Context, root string, opts RerunOptions) ([]ir.RunRecord, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("rerun: worker count must be at least 1, got %d", opts.Workers)
	}
	if opts.Mode == "" {
		opts.Mode = config.DefaultMode
	}

	var prefixes []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".his") {
			prefixes = append(prefixes, strings.TrimSuffix(path, filepath.Ext(path)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rerun: scan %s: %w", root, err)
	}

	o.logger.Info("re-running histories", "root", root, "histories", len(prefixes), "workers", opts.Workers, "mode", opts.Mode)

	records := make([]ir.RunRecord, len(prefixes))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, prefix := range prefixes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := o.rerunOne(gctx, i+1, prefix, opts)
			mu.Lock()
			records[i] = rec
			done++
			mu.Unlock()
			o.metrics.Runs.WithLabelValues(string(rec.Status)).Inc()
			return err
		})
	}
	err = g.Wait()

	out := make([]ir.RunRecord, 0, done)
	for _, r := range records {
		if r.Status != "" {
			out = append(out, r)
		}
	}
	if err != nil {
		return out, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return out, cerr
	}
	return out, nil
}

func (o *Orchestrator) rerunOne(ctx context.Context, n int, prefix string, opts RerunOptions) (ir.RunRecord, error) {
	rec := ir.RunRecord{Worker: -1, Instance: n, Prefix: prefix, Status: ir.StatusSkipped}
	fail := func(stage string, err error) (ir.RunRecord, error) {
		rec.Status = ir.StatusFailed
		rec.Error = err.Error()
		return rec, &RunError{Worker: -1, Instance: n, Prefix: prefix, Stage: stage, Err: err}
	}

	if opts.Force || !exists(prefix+".g01") {
		_, err := o.runner.ComputeModel(ctx, rec.HistoryPath(), prefix, opts.Mode)
		o.metrics.SimulatorCalls.WithLabelValues("model").Inc()
		if err != nil {
			return fail("model", err)
		}
		rec.Status = ir.StatusComplete
	}

	if opts.Mode.WantsTopology() && (opts.Force || !exists(prefix+".g23")) {
		_, err := o.runner.ComputeTopology(ctx, prefix)
		o.metrics.SimulatorCalls.WithLabelValues("topology").Inc()
		if err != nil {
			return fail("topology", err)
		}
		rec.Status = ir.StatusComplete
	}

	o.logger.Debug("history processed", "prefix", prefix, "status", rec.Status)
	return rec, nil
}
