package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = models.ErrNoMessage

// errSettled is returned when a delivery is acked or nacked more than once.
var errSettled = errors.New("delivery already settled")

// storedMessage is the internal structure persisted in Badger
type storedMessage struct {
	ID           string              `json:"id"`
	Body         models.QueueMessage `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// Config tunes the queue client.
type Config struct {
	Path              string
	VisibilityTimeout time.Duration
	MaxReceive        int
	PollInterval      time.Duration
}

// Client implements interfaces.QueueClient on top of a Badger store.
//
// Messages are written through to disk before Publish returns and survive a
// restart. An unacknowledged delivery becomes visible again after the
// visibility timeout; a message received more than MaxReceive times is
// dropped as poison instead of looping forever.
type Client struct {
	config   Config
	logger   arbor.ILogger
	mu       sync.Mutex
	db       *badger.DB
	declared map[string]bool
}

// NewClient creates a queue client. The store is not opened until Open.
func NewClient(config Config, logger arbor.ILogger) *Client {
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 5 * time.Minute
	}
	if config.MaxReceive <= 0 {
		config.MaxReceive = 3
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	return &Client{
		config:   config,
		logger:   logger,
		declared: make(map[string]bool),
	}
}

// Open opens the underlying Badger store. Calling Open on an open client is
// a no-op.
func (c *Client) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	if err := os.MkdirAll(c.config.Path, 0755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	options := badger.DefaultOptions(c.config.Path)
	options.Logger = nil // arbor handles logging

	db, err := badger.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open queue store: %w", err)
	}

	c.db = db
	c.logger.Debug().Str("path", c.config.Path).Msg("Queue store opened")
	return nil
}

// DeclareQueue registers a durable queue. Safe to call repeatedly; required
// before Publish or Receive on that queue.
func (c *Client) DeclareQueue(name string) error {
	if name == "" {
		return errors.New("queue name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return errors.New("queue client is not open")
	}
	if c.declared[name] {
		return nil
	}

	metaKey := []byte(fmt.Sprintf("queue:%s:meta", name))
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey, []byte(time.Now().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	c.declared[name] = true
	c.logger.Debug().Str("queue", name).Msg("Queue declared")
	return nil
}

func (c *Client) store(queue string) (*badger.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, errors.New("queue client is not open")
	}
	if !c.declared[queue] {
		return nil, fmt.Errorf("queue %s has not been declared", queue)
	}
	return c.db, nil
}

// Publish appends a persistent message to the queue. Return means the
// message is accepted and durable, not that it has been delivered.
func (c *Client) Publish(ctx context.Context, queue string, msg models.QueueMessage) error {
	db, err := c.store(queue)
	if err != nil {
		return err
	}

	stored := storedMessage{
		ID:         uuid.New().String(),
		Body:       msg,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	err = db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(queue, stored.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(queue, stored.VisibleAt, stored.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	c.logger.Trace().
		Str("queue", queue).
		Str("message_id", stored.ID).
		Str("type", msg.Type).
		Msg("Message published")
	return nil
}

// Receive pulls the next visible message, claiming it for the visibility
// timeout. Returns models.ErrNoMessage when the queue is empty.
func (c *Client) Receive(ctx context.Context, queue string) (*interfaces.Delivery, error) {
	db, err := c.store(queue)
	if err != nil {
		return nil, err
	}

	var claimed storedMessage

	err = db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := indexPrefix(queue)
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := parseIndexKey(queue, key)
			if err != nil {
				continue
			}
			// Index keys sort by visibility timestamp: the first future
			// entry means nothing later is ready either.
			if ts.After(now) {
				break
			}

			item, err := txn.Get(msgKey(queue, id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Orphaned index entry - clean up and keep scanning
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var msg storedMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}

			if msg.ReceiveCount >= c.config.MaxReceive {
				// Poison message - drop it rather than loop forever
				c.logger.Warn().
					Str("queue", queue).
					Str("message_id", id).
					Int("receive_count", msg.ReceiveCount).
					Msg("Dropping message after max receives")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(msgKey(queue, id)); err != nil {
					return err
				}
				continue
			}

			// Claim: bump receive count and push visibility forward
			msg.ReceiveCount++
			msg.VisibleAt = now.Add(c.config.VisibilityTimeout)

			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if err := txn.Set(msgKey(queue, id), data); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(indexKey(queue, msg.VisibleAt, id), []byte{}); err != nil {
				return err
			}

			claimed = msg
			return nil
		}

		return ErrNoMessage
	})
	if err != nil {
		return nil, err
	}

	return c.newDelivery(queue, claimed), nil
}

// newDelivery builds the delivery with single-settlement ack/nack handles.
func (c *Client) newDelivery(queue string, msg storedMessage) *interfaces.Delivery {
	var settled atomic.Bool

	return &interfaces.Delivery{
		ID:           msg.ID,
		Message:      msg.Body,
		ReceiveCount: msg.ReceiveCount,
		Ack: func() error {
			if !settled.CompareAndSwap(false, true) {
				return errSettled
			}
			return c.remove(queue, msg.ID)
		},
		Nack: func(requeue bool) error {
			if !settled.CompareAndSwap(false, true) {
				return errSettled
			}
			if !requeue {
				return c.remove(queue, msg.ID)
			}
			return c.release(queue, msg.ID)
		},
	}
}

// remove deletes a message and its index entry.
func (c *Client) remove(queue, id string) error {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	if db == nil {
		return errors.New("queue client is not open")
	}

	return db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgKey(queue, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil // already removed
			}
			return err
		}

		var msg storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &msg)
		}); err != nil {
			return err
		}

		if err := txn.Delete(indexKey(queue, msg.VisibleAt, id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Delete(msgKey(queue, id))
	})
}

// release makes a claimed message immediately visible again.
func (c *Client) release(queue, id string) error {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	if db == nil {
		return errors.New("queue client is not open")
	}

	return db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgKey(queue, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		var msg storedMessage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &msg)
		}); err != nil {
			return err
		}

		oldIndex := indexKey(queue, msg.VisibleAt, id)
		msg.VisibleAt = time.Now()

		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey(queue, id), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndex); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(indexKey(queue, msg.VisibleAt, id), []byte{})
	})
}

// Depth returns the number of currently visible messages.
func (c *Client) Depth(ctx context.Context, queue string) (int, error) {
	db, err := c.store(queue)
	if err != nil {
		return 0, err
	}

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := indexPrefix(queue)
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ts, _, err := parseIndexKey(queue, it.Item().Key())
			if err != nil {
				continue
			}
			if ts.After(now) {
				break
			}
			count++
		}
		return nil
	})
	return count, err
}

// Close closes the queue store.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Key helpers. Index keys embed the zero-padded visibility timestamp so
// lexicographic iteration yields messages in visibility order.

func msgKey(queue, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", queue, id))
}

func indexPrefix(queue string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", queue))
}

func indexKey(queue string, visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", queue, visibleAt.UnixNano(), id))
}

func parseIndexKey(queue string, key []byte) (time.Time, string, error) {
	prefix := indexPrefix(queue)
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 22 { // 20-digit timestamp, colon, id
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}

// Ensure Client implements the transport contract
var _ interfaces.QueueClient = (*Client)(nil)
