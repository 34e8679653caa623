package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/peto/internal/interfaces"
)

// Idle-poll backoff bounds. When the queue is empty the consumer doubles its
// wait up to the configured poll interval, then resets on the next delivery.
const minIdleBackoff = 100 * time.Millisecond

// Consume runs a handler loop against one queue until ctx is done. Prefetch
// bounds concurrent handler invocations; a handler that settles after it
// returns may briefly hold more unacknowledged deliveries than that. The
// handler is responsible for settling each delivery with Ack or Nack.
func (c *Client) Consume(ctx context.Context, queue string, handler func(context.Context, *interfaces.Delivery), opts interfaces.ConsumeOptions) error {
	if err := c.DeclareQueue(queue); err != nil {
		return err
	}

	prefetch := opts.Prefetch
	if prefetch < 1 {
		prefetch = 1
	}
	maxBackoff := opts.PollInterval
	if maxBackoff <= 0 {
		maxBackoff = c.config.PollInterval
	}

	c.logger.Info().
		Str("queue", queue).
		Int("prefetch", prefetch).
		Msg("Consumer started")

	// Counting semaphore: one token per in-flight handler invocation
	tokens := make(chan struct{}, prefetch)
	for i := 0; i < prefetch; i++ {
		tokens <- struct{}{}
	}

	backoff := minIdleBackoff
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", queue).Msg("Consumer stopped")
			return ctx.Err()
		case <-tokens:
		}

		delivery, err := c.Receive(ctx, queue)
		if err != nil {
			tokens <- struct{}{}

			if !errors.Is(err, ErrNoMessage) {
				c.logger.Warn().
					Err(err).
					Str("queue", queue).
					Msg("Error receiving message")
			}

			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", queue).Msg("Consumer stopped")
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = minIdleBackoff

		go func(d *interfaces.Delivery) {
			defer func() { tokens <- struct{}{} }()
			handler(ctx, d)
		}(delivery)
	}
}
