package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/peto/internal/models"
)

// Delivery is one received message plus its acknowledgement handles. The
// consumer must call exactly one of Ack or Nack; leaving a delivery
// unacknowledged stalls it until the visibility timeout requeues it.
type Delivery struct {
	ID           string
	Message      models.QueueMessage
	ReceiveCount int

	// Ack removes the message from the queue.
	Ack func() error
	// Nack releases the message. With requeue it becomes visible again
	// immediately; without requeue it is dropped (poison handling).
	Nack func(requeue bool) error
}

// ConsumeOptions tunes a consumer loop.
type ConsumeOptions struct {
	// Prefetch is the number of concurrent handler invocations a consumer
	// runs. Prefetch 1 means one handler at a time. A handler that defers
	// settlement past its return (batching) can hold more unacknowledged
	// deliveries than this; the visibility timeout still covers them.
	Prefetch int
	// PollInterval caps the idle-poll backoff. Zero uses the client default.
	PollInterval time.Duration
}

// QueueClient is an explicitly constructed, owned handle on the durable
// message transport. Open and DeclareQueue are idempotent; lifecycle is
// explicit so reconnect behavior is internal state of the client, not a
// module-level global.
type QueueClient interface {
	// Open establishes the underlying store. Calling Open while already
	// open is a no-op.
	Open() error
	// DeclareQueue creates the named durable queue if absent. Safe to call
	// repeatedly and required before Publish or Consume on that queue.
	DeclareQueue(name string) error
	// Publish appends a persistent message to the queue. Return means
	// "accepted by broker", not "delivered".
	Publish(ctx context.Context, queue string, msg models.QueueMessage) error
	// Receive pulls the next visible message, or models.ErrNoMessage when
	// the queue is empty.
	Receive(ctx context.Context, queue string) (*Delivery, error)
	// Consume runs a handler loop until ctx is done. The handler owns
	// acknowledgement of each delivery.
	Consume(ctx context.Context, queue string, handler func(context.Context, *Delivery), opts ConsumeOptions) error
	// Depth returns the number of visible messages in the queue.
	Depth(ctx context.Context, queue string) (int, error)
	Close() error
}
