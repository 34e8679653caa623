package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/peto/internal/interfaces"
)

// Batcher accumulates deliveries and flushes them when either the size
// threshold is reached or the timeout since the first unflushed delivery
// expires, whichever comes first. This bounds both worst-case latency and
// per-call overhead when bridging many queue events into fewer, richer
// downstream calls.
//
// The flush callback receives the whole batch and owns acknowledgement of
// every delivery in it.
type Batcher struct {
	size    int
	timeout time.Duration
	flush   func([]*interfaces.Delivery)

	mu      sync.Mutex
	pending []*interfaces.Delivery
	timer   *time.Timer
	closed  bool
}

// NewBatcher creates a batcher. size and timeout must both be positive.
func NewBatcher(size int, timeout time.Duration, flush func([]*interfaces.Delivery)) *Batcher {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Batcher{
		size:    size,
		timeout: timeout,
		flush:   flush,
	}
}

// Add appends a delivery to the current batch, flushing synchronously when
// the size threshold is reached. The first delivery of a batch arms the
// flush timer.
func (b *Batcher) Add(delivery *interfaces.Delivery) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return
	}

	b.pending = append(b.pending, delivery)

	if len(b.pending) >= b.size {
		batch := b.takeLocked()
		b.mu.Unlock()
		b.flush(batch)
		return
	}

	if len(b.pending) == 1 {
		b.timer = time.AfterFunc(b.timeout, b.flushNow)
	}
	b.mu.Unlock()
}

// flushNow is the timer callback: flush whatever accumulated.
func (b *Batcher) flushNow() {
	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.flush(batch)
	}
}

// takeLocked detaches the pending batch and disarms the timer. Caller holds mu.
func (b *Batcher) takeLocked() []*interfaces.Delivery {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.pending
	b.pending = nil
	return batch
}

// Close flushes any partial batch and stops the batcher.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	batch := b.takeLocked()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.flush(batch)
	}
}

// Run consumes from the queue into the batcher until ctx is done, then
// closes the batcher so a partial batch is not stranded.
func (b *Batcher) Run(ctx context.Context, client interfaces.QueueClient, queue string, opts interfaces.ConsumeOptions) error {
	defer b.Close()
	return client.Consume(ctx, queue, func(_ context.Context, d *interfaces.Delivery) {
		b.Add(d)
	}, opts)
}
