package sampler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/noddymc/internal/config"
)

// Kind is a sampling distribution.
type Kind string

const (
	KindNormal   Kind = config.DistNormal
	KindVonMises Kind = config.DistVonMises
	KindUniform  Kind = config.DistUniform
)

// z975 is the 97.5th percentile of the standard normal distribution, so a
// 2.5%-97.5% half-width of h corresponds to a standard deviation of h/z975.
const z975 = 1.959964

// ParseKind accepts the distribution names used in parameter tables.
func ParseKind(s string) (Kind, bool) {
	d, ok := config.CanonicalDistribution(s)
	return Kind(d), ok
}

// Row is a fully resolved parameter perturbation.
type Row struct {
	Line      int // 1-based source line, 0 for inline tables
	Event     string
	Parameter string
	Kind      Kind
	Mean      float64

	// StdDev is used by normal and von Mises draws.
	StdDev float64
	// HalfWidth bounds uniform draws to [Mean-HalfWidth, Mean+HalfWidth].
	HalfWidth float64
}

// Key identifies the parameter a row perturbs.
func (r Row) Key() string {
	return r.Event + "/" + r.Parameter
}

// Spec is an ordered set of parameter perturbations.
type Spec struct {
	Rows []Row
}

// Columns of a parameter CSV file.
const (
	colEvent     = "event"
	colParameter = "parameter"
	colType      = "type"
	colMean      = "mean"
	colHalfWidth = "+-"
	colStdDev    = "stdev"
)

// LoadCSV reads a parameter table from a CSV file.
func LoadCSV(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Message: err.Error()}
	}
	defer f.Close()

	spec, err := parseCSV(f, path)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// ParseCSV reads a parameter table from r. The header row names the
// columns: event, parameter, type, mean, and one of "+-" or stdev.
func ParseCSV(r io.Reader) (*Spec, error) {
	return parseCSV(r, "")
}

func parseCSV(r io.Reader, source string) (*Spec, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ConfigError{Source: source, Message: "parameter table is empty"}
	}
	if err != nil {
		return nil, &ConfigError{Source: source, Line: 1, Message: err.Error()}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}
	for _, required := range []string{colEvent, colParameter, colType, colMean} {
		if _, ok := cols[required]; !ok {
			return nil, &ConfigError{Source: source, Line: 1, Field: required, Message: "missing column"}
		}
	}
	_, hasHW := cols[colHalfWidth]
	_, hasSD := cols[colStdDev]
	if !hasHW && !hasSD {
		return nil, &ConfigError{Source: source, Line: 1, Field: colHalfWidth, Message: `missing dispersion column ("+-" or "stdev")`}
	}

	spec := &Spec{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cerr := &ConfigError{Source: source, Message: err.Error()}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				cerr.Line = pe.Line
			}
			return nil, cerr
		}
		line, _ := cr.FieldPos(0)

		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		raw := config.ParameterRow{
			Event:     get(colEvent),
			Parameter: get(colParameter),
			Type:      get(colType),
		}
		for _, f := range []struct {
			col string
			dst **float64
		}{
			{colMean, nil},
			{colHalfWidth, &raw.HalfWidth},
			{colStdDev, &raw.StdDev},
		} {
			s := get(f.col)
			if s == "" {
				if f.col == colMean {
					return nil, &ConfigError{Source: source, Line: line, Field: f.col, Message: "value is required"}
				}
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &ConfigError{Source: source, Line: line, Field: f.col, Message: fmt.Sprintf("not a number: %q", s)}
			}
			if f.dst == nil {
				raw.Mean = v
				continue
			}
			*f.dst = &v
		}

		row, cerr := resolveRow(raw)
		if cerr != nil {
			cerr.Source, cerr.Line = source, line
			return nil, cerr
		}
		row.Line = line
		spec.Rows = append(spec.Rows, row)
	}

	if len(spec.Rows) == 0 {
		return nil, &ConfigError{Source: source, Message: "parameter table has no rows"}
	}
	return spec, nil
}

// FromRows builds a Spec from an inline parameter table.
func FromRows(rows []config.ParameterRow) (*Spec, error) {
	if len(rows) == 0 {
		return nil, &ConfigError{Message: "parameter table has no rows"}
	}
	spec := &Spec{Rows: make([]Row, 0, len(rows))}
	for i, raw := range rows {
		row, cerr := resolveRow(raw)
		if cerr != nil {
			cerr.Row = i + 1
			return nil, cerr
		}
		spec.Rows = append(spec.Rows, row)
	}
	return spec, nil
}

// Load builds the parameter spec named by an experiment configuration.
func Load(exp *config.Experiment) (*Spec, error) {
	if exp.Parameters != "" {
		return LoadCSV(exp.Parameters)
	}
	return FromRows(exp.ParameterTable)
}

func resolveRow(raw config.ParameterRow) (Row, *ConfigError) {
	row := Row{
		Event:     norm.NFC.String(strings.TrimSpace(raw.Event)),
		Parameter: norm.NFC.String(strings.TrimSpace(raw.Parameter)),
		Mean:      raw.Mean,
	}

	if row.Event == "" {
		return Row{}, &ConfigError{Field: colEvent, Message: "value is required"}
	}
	if row.Parameter == "" {
		return Row{}, &ConfigError{Field: colParameter, Message: "value is required"}
	}
	kind, ok := ParseKind(raw.Type)
	if !ok {
		return Row{}, &ConfigError{Field: colType, Message: fmt.Sprintf("unknown distribution %q (expected normal, vonmises or uniform)", raw.Type)}
	}
	row.Kind = kind

	switch hw, sd := raw.HalfWidth, raw.StdDev; {
	case hw != nil && sd != nil:
		return Row{}, &ConfigError{Field: colHalfWidth, Message: `"+-" and "stdev" are mutually exclusive`}
	case hw == nil && sd == nil:
		return Row{}, &ConfigError{Field: colHalfWidth, Message: `one of "+-" or "stdev" is required`}
	case hw != nil:
		if !(*hw > 0) || math.IsInf(*hw, 0) {
			return Row{}, &ConfigError{Field: colHalfWidth, Message: "must be a positive number"}
		}
		row.HalfWidth = *hw
		row.StdDev = *hw / z975
	default:
		if !(*sd > 0) || math.IsInf(*sd, 0) {
			return Row{}, &ConfigError{Field: colStdDev, Message: "must be a positive number"}
		}
		row.StdDev = *sd
		row.HalfWidth = math.Sqrt(3) * *sd
	}

	if math.IsNaN(row.Mean) || math.IsInf(row.Mean, 0) {
		return Row{}, &ConfigError{Field: colMean, Message: "must be finite"}
	}
	return row, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(norm.NFC.String(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))))
	switch h {
	case "+/-", "+-":
		return colHalfWidth
	case "std", "sd", "stddev", "stdev":
		return colStdDev
	}
	return h
}
