package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}

	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		// UUIDv7 strings sort by creation time.
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("exp-1", "exp-2")

	assert.Equal(t, "exp-1", gen.Generate())
	assert.Equal(t, "exp-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestFixedGenerator_Concurrent(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	gen := NewFixedGenerator(ids...)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < len(ids); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, len(ids))
}
