package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name   string
		n, w   int
		counts []int
	}{
		{"even split", 9, 3, []int{3, 3, 3}},
		{"remainder to first worker", 10, 3, []int{4, 3, 3}},
		{"single worker", 7, 1, []int{7}},
		{"more workers than runs", 2, 3, []int{2, 0, 0}},
		{"one run", 1, 1, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Partition("out", tt.n, tt.w)
			require.NoError(t, err)
			require.Len(t, chunks, tt.w)

			var counts []int
			for i, c := range chunks {
				assert.Equal(t, i, c.Worker)
				counts = append(counts, c.Count)
			}
			assert.Equal(t, tt.counts, counts)
		})
	}
}

func TestPartition_Directories(t *testing.T) {
	chunks, err := Partition("out", 5, 1)
	require.NoError(t, err)
	assert.Equal(t, "out", chunks[0].Dir)

	chunks, err = Partition("out", 5, 2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "thread_0"), chunks[0].Dir)
	assert.Equal(t, filepath.Join("out", "thread_1"), chunks[1].Dir)
}

func TestPartition_CountsSumToTotal(t *testing.T) {
	for n := 1; n <= 50; n++ {
		for w := 1; w <= 8; w++ {
			chunks, err := Partition("out", n, w)
			require.NoError(t, err)

			sum := 0
			for i, c := range chunks {
				sum += c.Count
				if i > 0 {
					assert.Equal(t, n/w, c.Count, "n=%d w=%d worker=%d", n, w, i)
				}
			}
			assert.Equal(t, n, sum, "n=%d w=%d", n, w)
			assert.Equal(t, n/w+n%w, chunks[0].Count, "n=%d w=%d", n, w)
		}
	}
}

func TestPartition_Invalid(t *testing.T) {
	_, err := Partition("out", 0, 1)
	assert.Error(t, err)

	_, err = Partition("out", 10, 0)
	assert.Error(t, err)

	_, err = Partition("out", -1, -1)
	assert.Error(t, err)
}
