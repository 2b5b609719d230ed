package snowflake

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDGeneratorValidatesNode(t *testing.T) {
	_, err := NewIDGenerator(-1)
	assert.Error(t, err)

	_, err = NewIDGenerator(1024)
	assert.Error(t, err)

	_, err = NewIDGenerator(1023)
	assert.NoError(t, err)
}

func TestNextIDMonotonicAndUnique(t *testing.T) {
	g, err := NewIDGenerator(1)
	require.NoError(t, err)

	seen := make(map[int64]bool)
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := g.NextID()
		assert.Greater(t, id, prev)
		assert.False(t, seen[id])
		seen[id] = true
		prev = id
	}
}

func TestNextIDConcurrentUnique(t *testing.T) {
	g, err := NewIDGenerator(1)
	require.NoError(t, err)

	const workers = 8
	const perWorker = 1000

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.NextID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				assert.False(t, seen[id])
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestParseIDRoundTrip(t *testing.T) {
	g, err := NewIDGenerator(42)
	require.NoError(t, err)

	id := g.NextID()
	ts, nodeID, step := ParseID(id)

	assert.Equal(t, int64(42), nodeID)
	assert.GreaterOrEqual(t, step, int64(0))
	assert.Greater(t, ts, Epoch)
}
