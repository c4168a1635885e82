package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSequence_Next(t *testing.T) {
	seq := NewIDSequence("entity")

	assert.Equal(t, "entity-1", seq.Next())
	assert.Equal(t, "entity-2", seq.Next())

	seq.Reset()
	assert.Equal(t, "entity-1", seq.Next())
}

func TestIDSequence_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "id-1", NewIDSequence("").Next())
}

func TestIDSequence_ThreadSafe(t *testing.T) {
	seq := NewIDSequence("x")
	const goroutines, calls = 20, 50

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range calls {
				id := seq.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls)
}
