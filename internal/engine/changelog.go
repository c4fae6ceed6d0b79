package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/noddymc/internal/ir"
	"github.com/roach88/noddymc/internal/sampler"
)

// ChangeLogPath returns the CSV file a worker writes its parameter changes to.
// A single worker writes base.csv; with several workers each writes
// base_thread<i>.csv.
func ChangeLogPath(base string, worker, workers int) string {
	if workers > 1 {
		return fmt.Sprintf("%s_thread%d.csv", base, worker)
	}
	return base + ".csv"
}

// changeLog records the parameter values used by each run of one worker.
//
// Columns: instance, name (the file stem of the run), status, then one
// column per perturbed parameter named "<event>/<parameter>". Skipped runs
// whose history could not be read leave the parameter cells empty.
type changeLog struct {
	f    *os.File
	w    *csv.Writer
	keys []string
}

func openChangeLog(path string, rows []sampler.Row) (*changeLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create change log: %w", err)
	}

	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key()
	}

	c := &changeLog{f: f, w: csv.NewWriter(f), keys: keys}
	header := append([]string{"instance", "name", "status"}, keys...)
	if err := c.w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write change log header: %w", err)
	}
	return c, nil
}

// Write appends one run and flushes it to disk.
func (c *changeLog) Write(run ir.RunRecord) error {
	values := make(map[string]float64, len(run.Values))
	for _, v := range run.Values {
		values[v.Event+"/"+v.Parameter] = v.Value
	}

	rec := make([]string, 0, 3+len(c.keys))
	rec = append(rec, strconv.Itoa(run.Instance), filepath.Base(run.Prefix), string(run.Status))
	for _, k := range c.keys {
		v, ok := values[k]
		if !ok {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, strconv.FormatFloat(v, 'f', 6, 64))
	}

	if err := c.w.Write(rec); err != nil {
		return fmt.Errorf("write change log: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush change log: %w", err)
	}
	return nil
}

func (c *changeLog) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return fmt.Errorf("flush change log: %w", err)
	}
	return c.f.Close()
}
