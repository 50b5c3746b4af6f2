package queue

import (
	"context"
	"time"
)

// EventQueue is the interface for the audit event stream.
type EventQueue interface {
	// Publish adds an event to the stream.
	Publish(ctx context.Context, ev *Event) error

	// Consume returns a channel of messages from the stream.
	// Messages are delivered asynchronously as they arrive and the caller is
	// responsible for acknowledging each one. Prefetch controls how many
	// unacknowledged messages each consumer can hold.
	// The returned channels close when the context is cancelled or on error.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection.
	Close() error

	// HealthCheck verifies the queue connection is healthy.
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered messages older than a retention window.
// Implemented by RabbitMQQueue; the garbage collector depends only on this.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
