package history

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	eventHeaderRe = regexp.MustCompile(`^Event\s*#\s*(\d+)\s*=\s*(.*?)\s*$`)
	paramLineRe   = regexp.MustCompile(`^(\s+)([^=]*?)(\s*=\s*)(\S+)(\s*)$`)
	eventRefRe    = regexp.MustCompile(`(?i)^(?:event\s*)?#?\s*e?(\d+)$`)
)

// Parameter is a numeric property of an event.
type Parameter struct {
	Name  string
	Value float64

	line   int
	indent string
	sep    string
	trail  string
}

// Event is one entry in a model history, identified by its number.
type Event struct {
	ID     int
	Kind   string
	Params []*Parameter
}

// Param returns the first parameter of e whose name matches name.
// Matching ignores case and surrounding whitespace.
func (e *Event) Param(name string) (*Parameter, bool) {
	key := normalizeName(name)
	for _, p := range e.Params {
		if normalizeName(p.Name) == key {
			return p, true
		}
	}
	return nil, false
}

// History is a parsed model description.
//
// Parsing keeps every source line, so writing an unmodified History
// reproduces its input byte for byte apart from line-ending normalization.
type History struct {
	lines  []string
	eol    string
	final  bool // input ended with a line terminator
	Events []*Event
}

// Parse reads a history description from r.
func Parse(r io.Reader) (*History, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	h := &History{eol: "\n"}
	if bytes.Contains(data, []byte("\r\n")) {
		h.eol = "\r\n"
	}
	h.final = len(data) > 0 && data[len(data)-1] == '\n'

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var current *Event
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		idx := len(h.lines)
		h.lines = append(h.lines, line)

		if m := eventHeaderRe.FindStringSubmatch(line); m != nil {
			id, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("history line %d: invalid event number %q", idx+1, m[1])
			}
			current = &Event{ID: id, Kind: m[2]}
			h.Events = append(h.Events, current)
			continue
		}

		// Any unindented line closes the current event section.
		if line != "" && line[0] != ' ' && line[0] != '\t' {
			current = nil
			continue
		}
		if current == nil {
			continue
		}

		m := paramLineRe.FindStringSubmatch(line)
		if m == nil || m[2] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			continue
		}
		current.Params = append(current.Params, &Parameter{
			Name:   m[2],
			Value:  v,
			line:   idx,
			indent: m[1],
			sep:    m[3],
			trail:  m[5],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	return h, nil
}

// ReadFile parses the history file at path.
func ReadFile(path string) (*History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Event resolves an event reference. A reference is either an event number
// ("2", "#2", "E2", "Event 2") or an event kind ("FOLD") that occurs exactly
// once in the history.
func (h *History) Event(ref string) (*Event, error) {
	ref = strings.TrimSpace(ref)
	if m := eventRefRe.FindStringSubmatch(ref); m != nil {
		id, _ := strconv.Atoi(m[1])
		for _, e := range h.Events {
			if e.ID == id {
				return e, nil
			}
		}
		return nil, &LookupError{Event: ref}
	}

	key := normalizeName(ref)
	var found *Event
	for _, e := range h.Events {
		if normalizeName(e.Kind) != key {
			continue
		}
		if found != nil {
			return nil, &LookupError{Event: ref, Ambiguous: true}
		}
		found = e
	}
	if found == nil {
		return nil, &LookupError{Event: ref}
	}
	return found, nil
}

// Get returns the value of a parameter.
func (h *History) Get(event, param string) (float64, error) {
	p, err := h.lookup(event, param)
	if err != nil {
		return 0, err
	}
	return p.Value, nil
}

// Set changes the value of a parameter in place.
func (h *History) Set(event, param string, v float64) error {
	p, err := h.lookup(event, param)
	if err != nil {
		return err
	}
	p.Value = v
	h.lines[p.line] = p.indent + p.Name + p.sep + formatValue(v) + p.trail
	return nil
}

func (h *History) lookup(event, param string) (*Parameter, error) {
	e, err := h.Event(event)
	if err != nil {
		return nil, err
	}
	p, ok := e.Param(param)
	if !ok {
		return nil, &LookupError{Event: event, Parameter: param}
	}
	return p, nil
}

// Clone returns a deep copy that shares no mutable state with h.
func (h *History) Clone() *History {
	c := &History{
		lines:  append([]string(nil), h.lines...),
		eol:    h.eol,
		final:  h.final,
		Events: make([]*Event, len(h.Events)),
	}
	for i, e := range h.Events {
		ce := &Event{ID: e.ID, Kind: e.Kind, Params: make([]*Parameter, len(e.Params))}
		for j, p := range e.Params {
			cp := *p
			ce.Params[j] = &cp
		}
		c.Events[i] = ce
	}
	return c
}

// WriteTo serializes the history to w.
func (h *History) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for i, line := range h.lines {
		k, err := bw.WriteString(line)
		n += int64(k)
		if err != nil {
			return n, err
		}
		if i < len(h.lines)-1 || h.final {
			k, err = bw.WriteString(h.eol)
			n += int64(k)
			if err != nil {
				return n, err
			}
		}
	}
	return n, bw.Flush()
}

// WriteFile serializes the history to path, replacing any existing file.
func (h *History) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if _, err := h.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write history %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write history %s: %w", path, err)
	}
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func normalizeName(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
