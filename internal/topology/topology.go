package topology

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/noddymc/internal/ir"
)

// File extensions written by the simulator.
const (
	ExtTopology = ".g23"
	ExtModel    = ".g01"
)

// Topology is one topology artifact found under a result tree.
type Topology struct {
	// Base is the slash-separated path relative to the scanned root, without
	// extension (e.g. "thread_0/out_0001").
	Base string
	// Path is the file's location on disk.
	Path string
	Data []byte
}

// KeyFunc maps an artifact to its equality key.
type KeyFunc func(t Topology) string

// ContentKey keys artifacts by their content. CRLF and LF files with the same
// lines compare equal.
func ContentKey(t Topology) string {
	data := bytes.ReplaceAll(t.Data, []byte("\r\n"), []byte("\n"))
	return ir.TopologyKey(data)
}

// LoadTopologies walks root and reads every topology file beneath it.
// The result is ordered by Base.
func LoadTopologies(ctx context.Context, root string) ([]Topology, error) {
	var out []Topology
	err := walkExt(ctx, root, ExtTopology, func(path, base string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read topology: %w", err)
		}
		out = append(out, Topology{Base: base, Path: path, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListModelOutputs returns the Base of every model output marker under root,
// sorted.
func ListModelOutputs(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := walkExt(ctx, root, ExtModel, func(_, base string) error {
		out = append(out, base)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadModelRealisations would load the block models of a result tree.
// Decoding the simulator's block format is out of scope; callers always get
// ErrNotImplemented.
func LoadModelRealisations(ctx context.Context, root string) ([][]byte, error) {
	return nil, fmt.Errorf("load model realisations from %s: %w", root, ErrNotImplemented)
}

// walkExt calls fn for every regular file under root with the given
// extension, in lexical order.
func walkExt(ctx context.Context, root, ext string, fn func(path, base string) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan %s: not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		base := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		return fn(path, base)
	})
}

// Deduplicate groups items by key.
//
// Each class lists its members sorted, with the smallest member as
// representative. Classes are ordered by descending count, then key.
func Deduplicate(items []Topology, key KeyFunc) []ir.TopologyClass {
	if key == nil {
		key = ContentKey
	}

	groups := make(map[string][]string)
	for _, t := range items {
		k := key(t)
		groups[k] = append(groups[k], t.Base)
	}

	classes := make([]ir.TopologyClass, 0, len(groups))
	for k, members := range groups {
		slices.Sort(members)
		classes = append(classes, ir.TopologyClass{
			Key:            k,
			Count:          len(members),
			Representative: members[0],
			Members:        members,
		})
	}

	slices.SortFunc(classes, func(a, b ir.TopologyClass) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Key, b.Key)
	})
	return classes
}

// WriteAccumulateCSV writes one row per class: its 1-based index, key,
// count, and representative.
func WriteAccumulateCSV(path string, classes []ir.TopologyClass) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create accumulate file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"topology", "key", "count", "representative"}); err != nil {
		f.Close()
		return fmt.Errorf("write accumulate header: %w", err)
	}
	for i, c := range classes {
		rec := []string{strconv.Itoa(i + 1), c.Key, strconv.Itoa(c.Count), c.Representative}
		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("write accumulate row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush accumulate file: %w", err)
	}
	return f.Close()
}
