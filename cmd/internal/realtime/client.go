package realtime

import (
	"sync"

	v1 "taskdash/contracts/events/v1"
)

// Client represents one connected subscriber.
//
// Send is never closed by the hub, so concurrent broadcasters cannot panic.
// done signals goroutines to stop; Close is idempotent.
type Client struct {
	ID   string
	Send chan v1.Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(id string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		ID:   id,
		Send: make(chan v1.Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
// It does NOT close Send.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
