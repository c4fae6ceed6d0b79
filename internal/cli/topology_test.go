package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noddymc/internal/store"
	"github.com/roach88/noddymc/internal/testutil"
)

type topologyResponse struct {
	Status string          `json:"status"`
	Data   *TopologyResult `json:"data"`
	Error  *CLIError       `json:"error"`
}

// writeTopologies lays out g23 files whose contents are given per stem.
func writeTopologies(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for stem, body := range files {
		path := filepath.Join(root, filepath.FromSlash(stem)+".g23")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
}

func TestTopology_GroupsIdenticalFiles(t *testing.T) {
	root := t.TempDir()
	writeTopologies(t, root, map[string]string{
		"thread_0/out_0001": "1 2\n2 3\n",
		"thread_0/out_0002": "1 2\n",
		"thread_1/out_0001": "1 2\r\n2 3\r\n",
		"thread_1/out_0002": "1 2\n2 3\n",
	})
	csvPath := filepath.Join(t.TempDir(), "accumulate.csv")

	out, _, err := execute(t, testutil.NewFakeRunner(), "--format", "json", "topology", root, "--accumulate", csvPath)
	require.NoError(t, err)

	var resp topologyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data.ScanID)
	assert.Equal(t, 4, resp.Data.Total)
	require.Len(t, resp.Data.Classes, 2)
	assert.Equal(t, 3, resp.Data.Classes[0].Count)
	assert.Equal(t, "thread_0/out_0001", resp.Data.Classes[0].Representative)
	assert.Equal(t, "thread_0/out_0002", resp.Data.Classes[1].Representative)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "topology,key,count,representative\n")
	assert.Contains(t, string(data), ",3,thread_0/out_0001\n")
}

func TestTopology_TextOutput(t *testing.T) {
	root := t.TempDir()
	writeTopologies(t, root, map[string]string{"a": "x", "b": "x", "c": "y"})

	out, _, err := execute(t, testutil.NewFakeRunner(), "topology", root)
	require.NoError(t, err)
	assert.Contains(t, out, "3 topologies, 2 unique")
}

func TestTopology_RecordsScan(t *testing.T) {
	root := t.TempDir()
	writeTopologies(t, root, map[string]string{"a": "x", "b": "y", "c": "x"})
	db := filepath.Join(t.TempDir(), "scans.db")

	out, _, err := execute(t, testutil.NewFakeRunner(), "--format", "json", "topology", root, "--db", db)
	require.NoError(t, err)

	var resp topologyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.NotEmpty(t, resp.Data.ScanID)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	classes, err := st.TopologyClasses(context.Background(), resp.Data.ScanID)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, 2, classes[0].Count)
	assert.Equal(t, "a", classes[0].Representative)
}

func TestTopology_MissingDirectory(t *testing.T) {
	out, _, err := execute(t, testutil.NewFakeRunner(), "--format", "json", "topology", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp topologyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestTopology_ReportsRunsWithoutTopology(t *testing.T) {
	root := t.TempDir()
	writeTopologies(t, root, map[string]string{"out_0001": "x"})
	for _, stem := range []string{"out_0001", "out_0002"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, stem+".g01"), []byte("BLOCK"), 0644))
	}

	out, _, err := execute(t, testutil.NewFakeRunner(), "--format", "json", "topology", root)
	require.NoError(t, err)

	var resp topologyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, []string{"out_0002"}, resp.Data.Missing)
}

func TestTopology_ModelsNotSupported(t *testing.T) {
	out, _, err := execute(t, testutil.NewFakeRunner(), "--format", "json", "topology", t.TempDir(), "--models")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp topologyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, ErrCodeNotSupported, resp.Error.Code)
}
