package interfaces

import (
	"context"
	"time"
)

// QueueMessageEnvelope wraps a dequeued message with delivery state
type QueueMessageEnvelope struct {
	ID       string
	Body     []byte
	Received int // delivery attempts so far, including this one
}

// QueueService - durable at-least-once task queue
type QueueService interface {
	// Enqueue appends a message, optionally delayed.
	Enqueue(ctx context.Context, body []byte, delay time.Duration) (string, error)

	// Receive returns the next visible message and hides it for the
	// visibility timeout. Returns models.ErrNoMessage when empty.
	Receive(ctx context.Context) (*QueueMessageEnvelope, error)

	// Delete acknowledges a message permanently.
	Delete(ctx context.Context, id string) error

	// Extend pushes a message's visibility deadline further out.
	Extend(ctx context.Context, id string, d time.Duration) error

	// Depth returns visible and in-flight counts.
	Depth(ctx context.Context) (visible int, inflight int, err error)

	Close() error
}
