package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noddymc/internal/ir"
	"github.com/roach88/noddymc/internal/store"
	"github.com/roach88/noddymc/internal/testutil"
)

type generateResponse struct {
	Status string          `json:"status"`
	Data   *GenerateResult `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeGenerate(t *testing.T, out string) generateResponse {
	t.Helper()
	var resp generateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestGenerate_FromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, foldConfig)
	fake := testutil.NewFakeRunner()

	out, _, err := execute(t, fake, "--format", "json", "generate", "--config", cfg)
	require.NoError(t, err)

	resp := decodeGenerate(t, out)
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Data)
	assert.NotEmpty(t, resp.Data.ExperimentID)
	assert.Equal(t, filepath.Join(dir, "mc"), resp.Data.OutputDir)
	assert.Equal(t, int64(7), resp.Data.Seed)
	assert.Equal(t, 4, resp.Data.Runs)
	assert.Equal(t, 4, resp.Data.Complete)
	require.Len(t, resp.Data.Workers, 2)
	assert.Equal(t, filepath.Join(dir, "mc", "thread_1"), resp.Data.Workers[1].Dir)

	assert.Equal(t, 4, fake.Count("model"))
	assert.Equal(t, 0, fake.Count("topology"))
}

func TestGenerate_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, foldConfig)
	fake := testutil.NewFakeRunner()
	out := filepath.Join(dir, "other")

	_, _, err := execute(t, fake, "generate", "-c", cfg,
		"--runs", "3", "--workers", "1", "--out", out, "--mode", "topology", "--base-name", "fold")
	require.NoError(t, err)

	want := []string{
		filepath.Join(out, "fold_0001"),
		filepath.Join(out, "fold_0002"),
		filepath.Join(out, "fold_0003"),
	}
	assert.Equal(t, want, fake.Prefixes("model"))
	assert.Equal(t, want, fake.Prefixes("topology"))
}

func TestGenerate_TextOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, foldConfig)

	out, _, err := execute(t, testutil.NewFakeRunner(), "generate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Experiment")
	assert.Contains(t, out, "seed:    7")
	assert.Contains(t, out, "4 (4 complete, 0 skipped)")
}

func TestGenerate_SkipsExistingOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, foldConfig)
	fake := testutil.NewFakeRunner()

	_, _, err := execute(t, fake, "generate", "--config", cfg)
	require.NoError(t, err)
	fake.Reset()

	out, _, err := execute(t, fake, "--format", "json", "generate", "--config", cfg)
	require.NoError(t, err)
	resp := decodeGenerate(t, out)
	assert.Equal(t, 4, resp.Data.Skipped)
	assert.Equal(t, 0, fake.Count("model"))

	_, _, err = execute(t, fake, "generate", "--config", cfg, "--force")
	require.NoError(t, err)
	assert.Equal(t, 4, fake.Count("model"))
}

func TestGenerate_RecordsProvenance(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, foldConfig)
	db := filepath.Join(dir, "runs.db")

	out, _, err := execute(t, testutil.NewFakeRunner(), "--format", "json", "generate", "--config", cfg, "--db", db)
	require.NoError(t, err)
	resp := decodeGenerate(t, out)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	exp, err := st.Experiment(context.Background(), resp.Data.ExperimentID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), exp.Seed)

	counts, err := st.StatusCounts(context.Background(), resp.Data.ExperimentID)
	require.NoError(t, err)
	assert.Equal(t, 4, counts[ir.StatusComplete])
}

func TestGenerate_ServesMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, foldConfig)

	_, errOut, err := execute(t, testutil.NewFakeRunner(), "generate", "--config", cfg, "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, errOut, "serving metrics")
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		args     []string
		fail     string
		exitCode int
		errCode  string
	}{
		{
			name:     "missing settings",
			args:     []string{"--runs", "2"},
			exitCode: ExitCommandError,
			errCode:  ErrCodeConfig,
		},
		{
			name:     "unknown event",
			config:   strings.Replace(foldConfig, `event: FOLD`, `event: FAULT`, 1),
			exitCode: ExitCommandError,
			errCode:  ErrCodeParameters,
		},
		{
			name:     "invalid mode",
			config:   foldConfig,
			args:     []string{"--mode", "voxels"},
			exitCode: ExitCommandError,
			errCode:  ErrCodeConfig,
		},
		{
			name:     "missing config file",
			args:     []string{"--config", "does-not-exist.yaml"},
			exitCode: ExitCommandError,
			errCode:  ErrCodeNotFound,
		},
		{
			name:     "simulator failure",
			config:   foldConfig,
			args:     []string{"--workers", "1"},
			fail:     "out_0002",
			exitCode: ExitFailure,
			errCode:  ErrCodeRunFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := []string{"--format", "json", "generate"}
			if tt.config != "" {
				args = append(args, "--config", writeConfig(t, dir, tt.config))
			}
			args = append(args, tt.args...)

			fake := testutil.NewFakeRunner()
			if tt.fail != "" {
				fake.FailModelOn = filepath.Join(dir, "mc", tt.fail)
			}

			out, _, err := execute(t, fake, args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			resp := decodeGenerate(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.errCode, resp.Error.Code)
		})
	}
}
