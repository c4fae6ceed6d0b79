package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"
)

// Load reads an experiment configuration from a YAML (.yaml, .yml) or HCL
// (.hcl) file, applies defaults, resolves relative paths against the file's
// directory, and validates the result.
func Load(path string) (*Experiment, error) {
	exp, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	exp.ApplyDefaults()
	exp.normalize()
	exp.resolvePaths(filepath.Dir(path))

	if err := Validate(exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func decodeFile(path string) (*Experiment, error) {
	var exp Experiment

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := ParseYAML(data, &exp); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".hcl":
		if err := hclsimple.DecodeFile(path, nil, &exp); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (expected .yaml, .yml or .hcl)", filepath.Ext(path))
	}

	return &exp, nil
}

// ParseYAML decodes YAML into exp, rejecting unknown fields.
func ParseYAML(data []byte, exp *Experiment) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(exp)
}

// normalize canonicalizes enum-like fields before validation.
func (e *Experiment) normalize() {
	e.Mode = strings.ToUpper(strings.TrimSpace(e.Mode))
	for i := range e.ParameterTable {
		row := &e.ParameterTable[i]
		if d, ok := CanonicalDistribution(row.Type); ok {
			row.Type = d
			continue
		}
		row.Type = strings.ToLower(strings.TrimSpace(row.Type))
	}
}

// Finalize applies defaults and normalization to a configuration that was
// assembled in code or from flags rather than loaded from a file.
func (e *Experiment) Finalize() error {
	e.ApplyDefaults()
	e.normalize()
	return Validate(e)
}

func (e *Experiment) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	e.History = resolve(e.History)
	e.Parameters = resolve(e.Parameters)
	e.OutputDir = resolve(e.OutputDir)
	e.ChangeLog = resolve(e.ChangeLog)
	e.Database = resolve(e.Database)
}
