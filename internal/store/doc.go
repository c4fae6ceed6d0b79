// Package store provides SQLite-backed provenance storage for Monte Carlo
// experiments.
//
// The store records:
//   - Experiments: one row per orchestrated experiment (config snapshot)
//   - Runs: one row per simulated instance, keyed by (experiment, worker, instance)
//   - Topology scans: the distinct topologies found under an output tree
//
// # Write Patterns
//
// Run rows are upserted as they move pending -> running -> terminal. A
// terminal status is never overwritten by a non-terminal one, so a late
// duplicate write cannot regress a finished run.
//
// Reads order by (worker, instance) so reports are stable regardless of the
// order in which concurrent workers finished.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
