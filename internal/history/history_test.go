package history

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noddymc/internal/testutil"
)

func parseFixture(t *testing.T) *History {
	t.Helper()
	h, err := Parse(strings.NewReader(testutil.FoldHistory))
	require.NoError(t, err)
	return h
}

func TestParse_Events(t *testing.T) {
	h := parseFixture(t)

	require.Len(t, h.Events, 2)
	assert.Equal(t, 1, h.Events[0].ID)
	assert.Equal(t, "STRATIGRAPHY", h.Events[0].Kind)
	assert.Equal(t, 2, h.Events[1].ID)
	assert.Equal(t, "FOLD", h.Events[1].Kind)

	var names []string
	for _, p := range h.Events[1].Params {
		names = append(names, p.Name)
	}
	// Non-numeric properties (Type, Single Fold) are not parameters.
	assert.Equal(t, []string{"X", "Y", "Z", "Dip Direction", "Dip", "Pitch", "Wavelength", "Amplitude", "Cylindricity"}, names)
}

func TestParse_SectionAfterEventsIsIgnored(t *testing.T) {
	h := parseFixture(t)
	_, ok := h.Events[1].Param("Number of Views")
	assert.False(t, ok)
}

func TestWriteTo_RoundTrip(t *testing.T) {
	h := parseFixture(t)

	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, testutil.FoldHistory, buf.String())
}

func TestWriteTo_PreservesCRLF(t *testing.T) {
	src := strings.ReplaceAll(testutil.FoldHistory, "\n", "\r\n")
	h, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	require.NoError(t, h.Set("2", "Dip", 50))

	var buf bytes.Buffer
	_, err = h.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\tDip\t= 50.000000\r\n")
	assert.NotContains(t, strings.ReplaceAll(buf.String(), "\r\n", ""), "\n")
}

func TestSetAndGet(t *testing.T) {
	h := parseFixture(t)

	require.NoError(t, h.Set("2", "Dip", 47.25))
	v, err := h.Get("2", "dip")
	require.NoError(t, err)
	assert.Equal(t, 47.25, v)

	var buf bytes.Buffer
	_, err = h.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\tDip\t= 47.250000\n")
	assert.Contains(t, buf.String(), "\tDip Direction\t= 90.00\n")
}

func TestSet_FirstOccurrenceWins(t *testing.T) {
	h := parseFixture(t)

	require.NoError(t, h.Set("1", "Density", 3.1))

	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\tDensity\t= 3.100000\n")
	assert.Contains(t, buf.String(), "\tDensity\t= 2.40e+00\n")
}

func TestEventReferences(t *testing.T) {
	h := parseFixture(t)

	for _, ref := range []string{"2", "#2", "E2", "e2", "Event 2", "FOLD", "fold"} {
		e, err := h.Event(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, 2, e.ID, ref)
	}
}

func TestLookupErrors(t *testing.T) {
	h := parseFixture(t)

	_, err := h.Event("7")
	require.Error(t, err)
	assert.True(t, IsLookupError(err))

	err = h.Set("2", "Wobble", 1)
	require.Error(t, err)
	assert.True(t, IsLookupError(err))
	assert.Contains(t, err.Error(), "Wobble")

	// Non-numeric properties are not settable.
	err = h.Set("2", "Type", 1)
	assert.True(t, IsLookupError(err))
}

func TestEvent_AmbiguousKind(t *testing.T) {
	src := "Event #1\t= FOLD\n\tDip\t= 10\nEvent #2\t= FOLD\n\tDip\t= 20\n"
	h, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	_, err = h.Event("FOLD")
	require.Error(t, err)
	var le *LookupError
	require.ErrorAs(t, err, &le)
	assert.True(t, le.Ambiguous)
}

func TestClone_IsIndependent(t *testing.T) {
	h := parseFixture(t)
	c := h.Clone()

	require.NoError(t, c.Set("2", "Dip", 10))

	orig, err := h.Get("2", "Dip")
	require.NoError(t, err)
	assert.Equal(t, 45.0, orig)

	var a, b bytes.Buffer
	_, _ = h.WriteTo(&a)
	_, _ = c.WriteTo(&b)
	assert.NotEqual(t, a.String(), b.String())
	assert.Equal(t, testutil.FoldHistory, a.String())
}

func TestWriteFileAndReadFile(t *testing.T) {
	dir := t.TempDir()
	h := parseFixture(t)
	require.NoError(t, h.Set("FOLD", "Amplitude", 750))

	path := filepath.Join(dir, "out_0001.his")
	require.NoError(t, h.WriteFile(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	v, err := got.Get("2", "Amplitude")
	require.NoError(t, err)
	assert.Equal(t, 750.0, v)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.his"))
	require.Error(t, err)
}
