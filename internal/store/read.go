package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/noddymc/internal/ir"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Experiment returns the header of one experiment.
func (s *Store) Experiment(ctx context.Context, id string) (ir.ExperimentRecord, error) {
	var exp ir.ExperimentRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, history, base_digest, base_name, output_dir, runs, workers, mode, seed, force
		FROM experiments
		WHERE id = ?
	`, id).Scan(
		&exp.ID,
		&exp.History,
		&exp.BaseDigest,
		&exp.BaseName,
		&exp.OutputDir,
		&exp.Runs,
		&exp.Workers,
		&exp.Mode,
		&exp.Seed,
		&exp.Force,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ExperimentRecord{}, fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.ExperimentRecord{}, fmt.Errorf("query experiment: %w", err)
	}
	return exp, nil
}

// Runs returns every run of an experiment ordered by worker, then instance.
//
// Returns an empty slice (not nil) if the experiment has no runs.
func (s *Store) Runs(ctx context.Context, experimentID string) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT experiment_id, worker, instance, prefix, status, params, error
		FROM runs
		WHERE experiment_id = ?
		ORDER BY worker ASC, instance ASC
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		var (
			r      ir.RunRecord
			status string
			params string
		)
		if err := rows.Scan(&r.ExperimentID, &r.Worker, &r.Instance, &r.Prefix, &status, &params, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = ir.RunStatus(status)
		if err := json.Unmarshal([]byte(params), &r.Values); err != nil {
			return nil, fmt.Errorf("unmarshal run params: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// StatusCounts returns how many runs of an experiment are in each status.
func (s *Store) StatusCounts(ctx context.Context, experimentID string) (map[ir.RunStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM runs
		WHERE experiment_id = ?
		GROUP BY status
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[ir.RunStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[ir.RunStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// TopologyClasses returns the classes of one scan, most frequent first.
func (s *Store) TopologyClasses(ctx context.Context, scanID string) ([]ir.TopologyClass, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, count, representative
		FROM topology_classes
		WHERE scan_id = ?
		ORDER BY count DESC, key COLLATE BINARY ASC
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query topology classes: %w", err)
	}
	defer rows.Close()

	classes := []ir.TopologyClass{}
	for rows.Next() {
		var c ir.TopologyClass
		if err := rows.Scan(&c.Key, &c.Count, &c.Representative); err != nil {
			return nil, fmt.Errorf("scan topology class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topology classes: %w", err)
	}
	return classes, nil
}
