package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/noddymc/internal/config"
	"github.com/roach88/noddymc/internal/history"
	"github.com/roach88/noddymc/internal/ir"
	"github.com/roach88/noddymc/internal/runner"
	"github.com/roach88/noddymc/internal/sampler"
)

// WorkerTask is the immutable description of one worker's share of an
// experiment.
type WorkerTask struct {
	ExperimentID string
	Chunk        Chunk
	BaseName     string
	Mode         config.Mode
	Force        bool

	// ChangeLog is the CSV path for this worker, empty to disable.
	ChangeLog string
}

// worker executes the runs of one chunk sequentially.
//
// Everything a worker mutates (history, sampler, change log) is owned by it;
// the runner, recorder, metrics, and logger are shared and goroutine-safe.
type worker struct {
	task     WorkerTask
	history  *history.History
	sampler  *sampler.Sampler
	rows     []sampler.Row
	runner   runner.Runner
	recorder Recorder
	metrics  *Metrics
	logger   *slog.Logger
}

// run executes instances 1..Count. It stops at the first failed run and
// returns the records produced so far together with the error.
func (w *worker) run(ctx context.Context) (records []ir.RunRecord, err error) {
	w.metrics.ActiveWorkers.Inc()
	defer w.metrics.ActiveWorkers.Dec()

	var changes *changeLog
	if w.task.ChangeLog != "" {
		changes, err = openChangeLog(w.task.ChangeLog, w.rows)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := changes.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	w.logger.Debug("worker started", "runs", w.task.Chunk.Count, "dir", w.task.Chunk.Dir)

	records = make([]ir.RunRecord, 0, w.task.Chunk.Count)
	for i := 1; i <= w.task.Chunk.Count; i++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		rec, runErr := w.runInstance(ctx, i)
		if rerr := w.recorder.RecordRun(context.WithoutCancel(ctx), rec); rerr != nil {
			return append(records, rec), fmt.Errorf("record run %s: %w", rec.Prefix, rerr)
		}
		if changes != nil {
			if lerr := changes.Write(rec); lerr != nil {
				return append(records, rec), lerr
			}
		}
		w.metrics.Runs.WithLabelValues(string(rec.Status)).Inc()
		records = append(records, rec)

		if runErr != nil {
			w.logger.Error("run failed", "instance", i, "prefix", rec.Prefix, "error", runErr)
			return records, runErr
		}
	}

	w.logger.Debug("worker finished", "runs", len(records))
	return records, nil
}

// runInstance executes one instance and returns its terminal record.
func (w *worker) runInstance(ctx context.Context, instance int) (ir.RunRecord, error) {
	prefix := filepath.Join(w.task.Chunk.Dir, ir.InstanceName(w.task.BaseName, instance))
	rec := ir.RunRecord{
		ExperimentID: w.task.ExperimentID,
		Worker:       w.task.Chunk.Worker,
		Instance:     instance,
		Prefix:       prefix,
		Status:       ir.StatusPending,
	}
	logger := w.logger.With("instance", instance)

	// Draw before the skip check so the stream stays aligned with the
	// instance number whether or not earlier runs were skipped.
	samples := w.sampler.Draw()

	// In topology mode a run is only done once both the model and the
	// topology exist; a model without topology gets just the topology.
	needModel := w.task.Force || !exists(prefix+".g01")
	needTopology := w.task.Mode.WantsTopology() && (w.task.Force || !exists(prefix+".g23"))

	if !needModel && !needTopology {
		rec.Status = ir.StatusSkipped
		rec.Values = recoverValues(rec.HistoryPath(), w.rows)
		logger.Debug("output exists, skipping", "prefix", prefix)
		return rec, nil
	}

	if needModel {
		rec.Values = make([]ir.ParamValue, len(samples))
		for i, s := range samples {
			if err := w.history.Set(s.Event, s.Parameter, s.Value); err != nil {
				return w.fail(rec, "history", err)
			}
			rec.Values[i] = ir.ParamValue{Event: s.Event, Parameter: s.Parameter, Value: s.Value}
		}
	} else {
		rec.Values = recoverValues(rec.HistoryPath(), w.rows)
	}

	rec.Status = ir.StatusRunning
	if err := w.recorder.RecordRun(ctx, rec); err != nil {
		return w.fail(rec, "record", fmt.Errorf("record run: %w", err))
	}

	start := time.Now()
	if needModel {
		if err := w.history.WriteFile(rec.HistoryPath()); err != nil {
			return w.fail(rec, "history", err)
		}

		out, err := w.runner.ComputeModel(ctx, rec.HistoryPath(), prefix, w.task.Mode)
		w.metrics.SimulatorCalls.WithLabelValues("model").Inc()
		if err != nil {
			return w.fail(rec, "model", err)
		}
		if out != "" {
			logger.Debug("simulator output", "output", out)
		}
	}

	if needTopology {
		out, err := w.runner.ComputeTopology(ctx, prefix)
		w.metrics.SimulatorCalls.WithLabelValues("topology").Inc()
		if err != nil {
			return w.fail(rec, "topology", err)
		}
		if out != "" {
			logger.Debug("topology output", "output", out)
		}
	}

	w.metrics.RunDuration.Observe(time.Since(start).Seconds())
	rec.Status = ir.StatusComplete
	logger.Info("run complete", "prefix", prefix)
	return rec, nil
}

func (w *worker) fail(rec ir.RunRecord, stage string, err error) (ir.RunRecord, error) {
	rec.Status = ir.StatusFailed
	rec.Error = err.Error()
	return rec, &RunError{
		Worker:   rec.Worker,
		Instance: rec.Instance,
		Prefix:   rec.Prefix,
		Stage:    stage,
		Err:      err,
	}
}

// recoverValues reads the parameter values an earlier run wrote to its
// history. Parameters that cannot be read are omitted; a missing history
// yields nil.
func recoverValues(path string, rows []sampler.Row) []ir.ParamValue {
	h, err := history.ReadFile(path)
	if err != nil {
		return nil
	}
	var values []ir.ParamValue
	for _, r := range rows {
		v, err := h.Get(r.Event, r.Parameter)
		if err != nil {
			continue
		}
		values = append(values, ir.ParamValue{Event: r.Event, Parameter: r.Parameter, Value: v})
	}
	return values
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
