// Package delivery carries delta batches from the poll loop to the
// notification worker.
package delivery

import (
	"context"
	"errors"
	"sync"

	"hubtrack/internal/tracking"
)

// ErrChannelClosed is returned by Send and Receive once the consumer has
// closed the channel.
var ErrChannelClosed = errors.New("delivery channel closed")

// Channel is an unbounded FIFO queue for one producer and one consumer.
//
// Send never blocks. Receive blocks while the queue is empty. Close is called
// by the consumer when it stops; after that every Send fails.
type Channel struct {
	mu     sync.Mutex
	items  []tracking.DeltaBatch
	closed bool

	// wake has capacity 1; a pending token means "items may be available".
	wake chan struct{}
}

// NewChannel returns an empty open channel.
func NewChannel() *Channel {
	return &Channel{wake: make(chan struct{}, 1)}
}

// Send appends b to the queue and wakes the consumer. It fails only after
// Close.
func (c *Channel) Send(b tracking.DeltaBatch) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	c.items = append(c.items, b)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Receive returns the oldest queued batch, blocking until one is available,
// the channel is closed, or ctx is done.
func (c *Channel) Receive(ctx context.Context) (tracking.DeltaBatch, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return tracking.DeltaBatch{}, ErrChannelClosed
		}
		if len(c.items) > 0 {
			b := c.items[0]
			c.items[0] = tracking.DeltaBatch{}
			c.items = c.items[1:]
			if len(c.items) == 0 {
				// Release the backing array once drained.
				c.items = nil
			}
			c.mu.Unlock()
			return b, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return tracking.DeltaBatch{}, ctx.Err()
		case <-c.wake:
		}
	}
}

// Close is idempotent. Pending batches are never delivered but still count
// toward Len.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Len reports the number of queued batches not yet received.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
