// Package engine runs Monte Carlo experiments.
//
// An experiment of N runs is split statically across W workers (Partition).
// Worker 0 takes the remainder; every other worker gets N/W runs. Each
// worker owns a clone of the base history and its own sampler stream, so
// workers share nothing mutable. Runs within a worker are sequential and
// numbered from 1.
//
// For every run a worker draws a parameter set, writes the perturbed history
// next to the simulator output, and calls the Runner. Existing model output
// is skipped unless the experiment forces recomputation. In TOPOLOGY mode
// each run is followed by topology extraction.
//
// The first failing run cancels the whole experiment: the remaining workers
// stop before their next run and in-flight simulator processes are killed
// through the context.
//
// Provenance goes to an optional Recorder (see package store), per-worker CSV
// change logs, and Prometheus metrics.
package engine
