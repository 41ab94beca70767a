// Package queue carries MetricUpdate events from a telemetry client's
// receive loop to the consumer that applies them.
//
// Each client generation owns one queue. Publishing blocks while the buffer
// is full, so a slow consumer applies backpressure to the socket reader
// instead of dropping updates.
package queue

import (
	"context"
	"sync"

	"github.com/okian/dpsbar/internal/domain/model"
	"github.com/okian/dpsbar/pkg/metrics"
)

const defaultBufferSize = 64

// Update is the payload type flowing through the queue.
type Update = model.MetricUpdate

// Queue provides blocking publish and channel-based consumption.
type Queue interface {
	// Publish hands an update to the consumer side. It blocks while the
	// buffer is full and returns false if ctx ends first or the queue is closed.
	Publish(ctx context.Context, u Update) bool

	// Updates returns the receive side. It is closed by Close.
	Updates() <-chan Update

	// Len returns the number of buffered updates.
	Len() int

	// Close stops accepting updates and closes the receive side.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	updates    chan Update
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(q)
	}
	q.updates = make(chan Update, q.bufferSize)
	return q
}

// Publish adds an update to the queue.
func (q *InMemoryQueue) Publish(ctx context.Context, u Update) bool {
	// The read lock is held across the send so Close cannot close the
	// channel underneath it. Callers cancel ctx before closing.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.updates <- u:
		metrics.RecordMetricUpdate()
		metrics.UpdateBacklog(len(q.updates))
		return true
	case <-ctx.Done():
		return false
	}
}

// Updates returns the receive side of the queue.
func (q *InMemoryQueue) Updates() <-chan Update {
	return q.updates
}

// Len returns the current number of queued updates.
func (q *InMemoryQueue) Len() int {
	return len(q.updates)
}

// Close gracefully shuts down the queue. Buffered updates remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.updates)
	q.closed = true
	metrics.UpdateBacklog(0)
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
