package config

import (
	"fmt"
	"strings"
)

// Mode selects which outputs the simulator computes for each run.
type Mode string

const (
	ModeBlock         Mode = "BLOCK"
	ModeGeophysics    Mode = "GEOPHYSICS"
	ModeSurfaces      Mode = "SURFACES"
	ModeBlockGeophys  Mode = "BLOCK_GEOPHYS"
	ModeTopology      Mode = "TOPOLOGY"
	ModeBlockSurfaces Mode = "BLOCK_SURFACES"
	ModeAll           Mode = "ALL"
)

// ValidModes lists every simulation mode accepted by the simulator.
var ValidModes = []Mode{
	ModeBlock,
	ModeGeophysics,
	ModeSurfaces,
	ModeBlockGeophys,
	ModeTopology,
	ModeBlockSurfaces,
	ModeAll,
}

// ParseMode converts a case-insensitive mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range ValidModes {
		if v == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid simulation mode %q: must be one of %v", s, ValidModes)
}

// WantsTopology reports whether runs in this mode are followed by topology extraction.
func (m Mode) WantsTopology() bool {
	return m == ModeTopology
}

// Distribution names of a parameter table row, in canonical spelling.
const (
	DistNormal   = "normal"
	DistVonMises = "vonmises"
	DistUniform  = "uniform"
)

// CanonicalDistribution maps a distribution name to its canonical spelling.
// Case, spaces, underscores and hyphens are ignored, and "gaussian" is an
// alias of normal.
func CanonicalDistribution(s string) (string, bool) {
	switch strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)) {
	case "normal", "gaussian":
		return DistNormal, true
	case "vonmises":
		return DistVonMises, true
	case "uniform":
		return DistUniform, true
	}
	return "", false
}

// Defaults used when a field is left empty.
const (
	DefaultBaseName     = "out"
	DefaultWorkers      = 1
	DefaultMode         = ModeBlock
	DefaultNoddyPath    = "noddy"
	DefaultTopologyPath = "topology"
)

// ParameterRow is one line of a parameter perturbation table.
//
// Exactly one of HalfWidth ("+-", the distance between the 2.5th and 97.5th
// percentiles divided by two) and StdDev must be set, and it must be positive.
// Nil means unset.
type ParameterRow struct {
	Event     string   `yaml:"event" json:"event" hcl:"event"`
	Parameter string   `yaml:"parameter" json:"parameter" hcl:"parameter"`
	Type      string   `yaml:"type" json:"type" hcl:"type"`
	Mean      float64  `yaml:"mean" json:"mean" hcl:"mean"`
	HalfWidth *float64 `yaml:"+-,omitempty" json:"+-,omitempty" hcl:"half_width,optional"`
	StdDev    *float64 `yaml:"stdev,omitempty" json:"stdev,omitempty" hcl:"stdev,optional"`
}

// Experiment is the full configuration of a Monte Carlo experiment.
//
// The parameter specification comes either from a CSV file (Parameters) or
// from an inline table (ParameterTable), never both.
type Experiment struct {
	History        string         `yaml:"history" json:"history" hcl:"history"`
	Parameters     string         `yaml:"parameters,omitempty" json:"parameters,omitempty" hcl:"parameters,optional"`
	ParameterTable []ParameterRow `yaml:"parameter_table,omitempty" json:"parameter_table,omitempty" hcl:"parameter,block"`
	BaseName       string         `yaml:"base_name" json:"base_name" hcl:"base_name,optional"`
	OutputDir      string         `yaml:"output_dir" json:"output_dir" hcl:"output_dir"`
	Runs           int            `yaml:"runs" json:"runs" hcl:"runs"`
	Workers        int            `yaml:"workers" json:"workers" hcl:"workers,optional"`
	Mode           string         `yaml:"mode" json:"mode" hcl:"mode,optional"`
	Force          bool           `yaml:"force" json:"force" hcl:"force,optional"`
	Verbose        bool           `yaml:"verbose" json:"verbose" hcl:"verbose,optional"`
	ChangeLog      string         `yaml:"change_log,omitempty" json:"change_log,omitempty" hcl:"change_log,optional"`
	Seed           int64          `yaml:"seed" json:"seed" hcl:"seed,optional"`
	FlatOutput     bool           `yaml:"flat_output" json:"flat_output" hcl:"flat_output,optional"`
	NoddyPath      string         `yaml:"noddy" json:"noddy" hcl:"noddy,optional"`
	TopologyPath   string         `yaml:"topology" json:"topology" hcl:"topology,optional"`
	Database       string         `yaml:"database,omitempty" json:"database,omitempty" hcl:"database,optional"`
}

// ApplyDefaults fills empty fields with their default values.
func (e *Experiment) ApplyDefaults() {
	if e.BaseName == "" {
		e.BaseName = DefaultBaseName
	}
	if e.Workers == 0 {
		e.Workers = DefaultWorkers
	}
	if e.Mode == "" {
		e.Mode = string(DefaultMode)
	}
	if e.NoddyPath == "" {
		e.NoddyPath = DefaultNoddyPath
	}
	if e.TopologyPath == "" {
		e.TopologyPath = DefaultTopologyPath
	}
}

// SimMode returns the parsed simulation mode.
func (e *Experiment) SimMode() (Mode, error) {
	return ParseMode(e.Mode)
}
