package ir

import "fmt"

// RunStatus is the lifecycle state of a single simulated instance.
//
// Transitions: pending -> running -> complete | skipped | failed.
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusComplete RunStatus = "complete"
	StatusSkipped  RunStatus = "skipped"
	StatusFailed   RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == StatusComplete || s == StatusSkipped || s == StatusFailed
}

// ParamValue is the value a parameter took in one run.
type ParamValue struct {
	Event     string  `json:"event"`
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
}

// RunRecord describes one simulated instance.
type RunRecord struct {
	ExperimentID string       `json:"experiment_id"`
	Worker       int          `json:"worker"`
	Instance     int          `json:"instance"` // 1-based within the worker
	Prefix       string       `json:"prefix"`   // output path without extension
	Status       RunStatus    `json:"status"`
	Values       []ParamValue `json:"values"`
	Error        string       `json:"error,omitempty"`
}

// HistoryPath is the path of the history file written for this run.
func (r RunRecord) HistoryPath() string {
	return r.Prefix + ".his"
}

// InstanceName formats the file stem used for an instance.
func InstanceName(baseName string, instance int) string {
	return fmt.Sprintf("%s_%04d", baseName, instance)
}

// ExperimentRecord is the provenance header of one experiment.
type ExperimentRecord struct {
	ID         string `json:"id"`
	History    string `json:"history"`
	// BaseDigest is the HistoryDigest of the unperturbed history.
	BaseDigest string `json:"base_digest"`
	BaseName   string `json:"base_name"`
	OutputDir  string `json:"output_dir"`
	Runs       int    `json:"runs"`
	Workers    int    `json:"workers"`
	Mode       string `json:"mode"`
	Seed       int64  `json:"seed"`
	Force      bool   `json:"force"`
}

// TopologyClass is one distinct topology and how often it occurred.
type TopologyClass struct {
	Key            string   `json:"key"`
	Count          int      `json:"count"`
	Representative string   `json:"representative"`
	Members        []string `json:"members,omitempty"`
}
