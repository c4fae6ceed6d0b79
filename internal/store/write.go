package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/noddymc/internal/ir"
)

// CreateExperiment inserts an experiment header.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) CreateExperiment(ctx context.Context, exp ir.ExperimentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO experiments
		(id, history, base_digest, base_name, output_dir, runs, workers, mode, seed, force, version, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		exp.ID,
		exp.History,
		exp.BaseDigest,
		exp.BaseName,
		exp.OutputDir,
		exp.Runs,
		exp.Workers,
		exp.Mode,
		exp.Seed,
		exp.Force,
		ir.ToolVersion,
		timestamp(),
	)
	if err != nil {
		return fmt.Errorf("create experiment: %w", err)
	}
	return nil
}

// FinishExperiment stamps the experiment's completion time.
func (s *Store) FinishExperiment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE experiments SET finished_at = ? WHERE id = ?
	`, timestamp(), id)
	if err != nil {
		return fmt.Errorf("finish experiment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish experiment: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish experiment %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordRun inserts or advances a run record.
//
// A run already in a terminal state (complete, skipped, failed) is left
// untouched, so status only moves forward.
//
// Note: The experiment referenced by ExperimentID must exist (foreign key constraint).
func (s *Store) RecordRun(ctx context.Context, run ir.RunRecord) error {
	params, err := marshalValues(run.Values)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(experiment_id, worker, instance, prefix, status, params, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(experiment_id, worker, instance) DO UPDATE SET
			prefix = excluded.prefix,
			status = excluded.status,
			params = excluded.params,
			error  = excluded.error
		WHERE runs.status NOT IN ('complete', 'skipped', 'failed')
	`,
		run.ExperimentID,
		run.Worker,
		run.Instance,
		run.Prefix,
		string(run.Status),
		params,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// WriteTopologyScan stores the distinct topologies found under root.
// The scan header and all classes are written in one transaction.
func (s *Store) WriteTopologyScan(ctx context.Context, scanID, root string, total int, classes []ir.TopologyClass) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write topology scan: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO topology_scans (id, root, total, created_at)
		VALUES (?, ?, ?, ?)
	`, scanID, root, total, timestamp()); err != nil {
		return fmt.Errorf("write topology scan: insert scan: %w", err)
	}

	for _, c := range classes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO topology_classes (scan_id, key, count, representative)
			VALUES (?, ?, ?, ?)
		`, scanID, c.Key, c.Count, c.Representative); err != nil {
			return fmt.Errorf("write topology scan: insert class %s: %w", c.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write topology scan: commit: %w", err)
	}
	return nil
}

func marshalValues(values []ir.ParamValue) (string, error) {
	if values == nil {
		values = []ir.ParamValue{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
