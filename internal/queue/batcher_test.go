package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/peto/internal/interfaces"
)

// batchCollector records flushed batches for assertions
type batchCollector struct {
	mu      sync.Mutex
	batches [][]*interfaces.Delivery
}

func (c *batchCollector) flush(batch []*interfaces.Delivery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
}

func (c *batchCollector) snapshot() [][]*interfaces.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]*interfaces.Delivery, len(c.batches))
	copy(out, c.batches)
	return out
}

func delivery(id string) *interfaces.Delivery {
	return &interfaces.Delivery{
		ID:   id,
		Ack:  func() error { return nil },
		Nack: func(bool) error { return nil },
	}
}

func TestBatcherFlushesAtSizeThreshold(t *testing.T) {
	collector := &batchCollector{}
	batcher := NewBatcher(3, time.Minute, collector.flush)

	batcher.Add(delivery("a"))
	batcher.Add(delivery("b"))
	assert.Empty(t, collector.snapshot(), "no flush before threshold")

	batcher.Add(delivery("c"))

	batches := collector.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
}

func TestBatcherFlushesOnTimeout(t *testing.T) {
	collector := &batchCollector{}
	batcher := NewBatcher(5, 50*time.Millisecond, collector.flush)

	batcher.Add(delivery("a"))
	batcher.Add(delivery("b"))

	assert.Eventually(t, func() bool {
		batches := collector.snapshot()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestBatcherTimerRestartsPerBatch(t *testing.T) {
	collector := &batchCollector{}
	batcher := NewBatcher(2, 50*time.Millisecond, collector.flush)

	// First batch flushes on size; the timer must re-arm for the next one
	batcher.Add(delivery("a"))
	batcher.Add(delivery("b"))
	require.Len(t, collector.snapshot(), 1)

	batcher.Add(delivery("c"))

	assert.Eventually(t, func() bool {
		return len(collector.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	batches := collector.snapshot()
	assert.Len(t, batches[1], 1)
	assert.Equal(t, "c", batches[1][0].ID)
}

func TestBatcherCloseFlushesPartialBatch(t *testing.T) {
	collector := &batchCollector{}
	batcher := NewBatcher(10, time.Minute, collector.flush)

	batcher.Add(delivery("a"))
	batcher.Close()

	batches := collector.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)

	// Adds after close are dropped, not flushed
	batcher.Add(delivery("b"))
	assert.Len(t, collector.snapshot(), 1)
}

func TestBatcherCloseWithoutPendingIsQuiet(t *testing.T) {
	collector := &batchCollector{}
	batcher := NewBatcher(2, time.Minute, collector.flush)
	batcher.Close()
	assert.Empty(t, collector.snapshot())
}
