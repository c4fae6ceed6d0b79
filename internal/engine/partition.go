package engine

import (
	"fmt"
	"path/filepath"
)

// Chunk is the share of an experiment assigned to one worker.
type Chunk struct {
	Worker int
	Count  int
	// Dir is where the worker writes its instances.
	Dir string
}

// Partition splits n runs across w workers rooted at root.
//
// Every worker gets n/w runs; worker 0 also takes the remainder. With more
// than one worker each chunk writes to root/thread_<i>, otherwise to root.
func Partition(root string, n, w int) ([]Chunk, error) {
	if n < 1 {
		return nil, fmt.Errorf("partition: run count must be at least 1, got %d", n)
	}
	if w < 1 {
		return nil, fmt.Errorf("partition: worker count must be at least 1, got %d", w)
	}

	chunks := make([]Chunk, w)
	for i := range chunks {
		chunks[i] = Chunk{Worker: i, Count: n / w, Dir: root}
		if w > 1 {
			chunks[i].Dir = filepath.Join(root, fmt.Sprintf("thread_%d", i))
		}
	}
	chunks[0].Count += n % w
	return chunks, nil
}
