package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noddymc/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestExperiment(t *testing.T, s *Store, id string) ir.ExperimentRecord {
	t.Helper()
	exp := ir.ExperimentRecord{
		ID:         id,
		History:    "foldUC.his",
		BaseDigest: "abc123",
		BaseName:   "out",
		OutputDir:  "mc_out",
		Runs:       10,
		Workers:    3,
		Mode:       "TOPOLOGY",
		Seed:       42,
		Force:      true,
	}
	require.NoError(t, s.CreateExperiment(context.Background(), exp))
	return exp
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"experiments", "runs", "topology_scans", "topology_classes"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestExperiment_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	want := createTestExperiment(t, s, "exp-1")

	got, err := s.Experiment(context.Background(), "exp-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Duplicate insert is ignored.
	require.NoError(t, s.CreateExperiment(context.Background(), want))
}

func TestExperiment_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Experiment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.FinishExperiment(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFinishExperiment(t *testing.T) {
	s := createTestStore(t)
	createTestExperiment(t, s, "exp-1")

	require.NoError(t, s.FinishExperiment(context.Background(), "exp-1"))

	var finished string
	require.NoError(t, s.db.QueryRow("SELECT finished_at FROM experiments WHERE id = 'exp-1'").Scan(&finished))
	assert.NotEmpty(t, finished)
}

func TestRecordRun_StatusOnlyMovesForward(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "exp-1")

	run := ir.RunRecord{ExperimentID: "exp-1", Worker: 0, Instance: 1, Prefix: "mc_out/out_0001", Status: ir.StatusPending}
	require.NoError(t, s.RecordRun(ctx, run))

	run.Status = ir.StatusRunning
	run.Values = []ir.ParamValue{{Event: "2", Parameter: "Dip", Value: 47.5}}
	require.NoError(t, s.RecordRun(ctx, run))

	run.Status = ir.StatusComplete
	require.NoError(t, s.RecordRun(ctx, run))

	// A late non-terminal write must not regress the run.
	run.Status = ir.StatusRunning
	run.Values = nil
	require.NoError(t, s.RecordRun(ctx, run))

	runs, err := s.Runs(ctx, "exp-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ir.StatusComplete, runs[0].Status)
	assert.Equal(t, []ir.ParamValue{{Event: "2", Parameter: "Dip", Value: 47.5}}, runs[0].Values)
}

func TestRecordRun_RequiresExperiment(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordRun(context.Background(), ir.RunRecord{ExperimentID: "nope", Worker: 0, Instance: 1, Status: ir.StatusPending})
	require.Error(t, err)
}

func TestRecordRun_RejectsZeroInstance(t *testing.T) {
	s := createTestStore(t)
	createTestExperiment(t, s, "exp-1")

	err := s.RecordRun(context.Background(), ir.RunRecord{ExperimentID: "exp-1", Worker: 0, Instance: 0, Status: ir.StatusPending})
	require.Error(t, err)
}

func TestRuns_OrderedByWorkerThenInstance(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "exp-1")

	for _, r := range []ir.RunRecord{
		{Worker: 1, Instance: 2, Status: ir.StatusComplete},
		{Worker: 0, Instance: 2, Status: ir.StatusSkipped},
		{Worker: 1, Instance: 1, Status: ir.StatusFailed, Error: "boom"},
		{Worker: 0, Instance: 1, Status: ir.StatusComplete},
	} {
		r.ExperimentID = "exp-1"
		require.NoError(t, s.RecordRun(ctx, r))
	}

	runs, err := s.Runs(ctx, "exp-1")
	require.NoError(t, err)
	require.Len(t, runs, 4)

	var order [][2]int
	for _, r := range runs {
		order = append(order, [2]int{r.Worker, r.Instance})
		assert.NotNil(t, r.Values)
	}
	assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {1, 1}, {1, 2}}, order)
	assert.Equal(t, "boom", runs[2].Error)

	counts, err := s.StatusCounts(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, map[ir.RunStatus]int{
		ir.StatusComplete: 2,
		ir.StatusSkipped:  1,
		ir.StatusFailed:   1,
	}, counts)
}

func TestRuns_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.Runs(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestTopologyScan_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	classes := []ir.TopologyClass{
		{Key: "bbb", Count: 1, Representative: "mc_out/thread_1/out_0001"},
		{Key: "aaa", Count: 3, Representative: "mc_out/thread_0/out_0001"},
		{Key: "ccc", Count: 3, Representative: "mc_out/thread_0/out_0002"},
	}
	require.NoError(t, s.WriteTopologyScan(ctx, "scan-1", "mc_out", 7, classes))

	got, err := s.TopologyClasses(ctx, "scan-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "aaa", got[0].Key)
	assert.Equal(t, "ccc", got[1].Key)
	assert.Equal(t, "bbb", got[2].Key)

	// Duplicate scan IDs are rejected and leave no partial rows behind.
	err = s.WriteTopologyScan(ctx, "scan-1", "mc_out", 1, []ir.TopologyClass{{Key: "zzz", Count: 1, Representative: "x"}})
	require.Error(t, err)
	got, err = s.TopologyClasses(ctx, "scan-1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRecordRun_ConcurrentWriters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestExperiment(t, s, "exp-1")

	const workers, perWorker = 4, 25
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			for i := 1; i <= perWorker; i++ {
				if err := s.RecordRun(ctx, ir.RunRecord{ExperimentID: "exp-1", Worker: w, Instance: i, Status: ir.StatusComplete}); err != nil {
					errs <- err
					return
				}
			}
			errs <- nil
		}(w)
	}
	for w := 0; w < workers; w++ {
		require.NoError(t, <-errs)
	}

	counts, err := s.StatusCounts(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, counts[ir.StatusComplete])
}
