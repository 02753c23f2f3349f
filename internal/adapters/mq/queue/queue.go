// Package queue carries model refresh requests from the ingestion path to
// the refresh worker.
//
// Every pending request asks for the same thing (rebuild from the latest
// store contents), so a full queue coalesces new requests into the ones
// already waiting instead of growing.
package queue

import (
	"context"
	"sync"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/metrics"
)

const defaultCapacity = 1

// Request is the payload flowing through the queue.
type Request = model.RefreshRequest

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue offers a request. It returns ErrClosed after Close, and
	// false when the request was neither queued nor coalesced.
	Enqueue(ctx context.Context, r Request) (bool, error)

	// Requests is the receive side of the queue. Receiving takes the
	// pending request out, which frees the slot for the next trigger.
	// The channel is closed by Close.
	Requests() <-chan Request

	// Len returns the current number of pending requests.
	Len() int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests chan Request
	capacity int
	coalesce bool

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a queue holding one pending request that
// coalesces overflow, unless options say otherwise.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
		coalesce: true,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a request without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Request) (bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false, err
	}

	select {
	case q.requests <- r:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.requests))
		return true, nil
	default:
	}

	if q.coalesce {
		metrics.RecordRefreshCoalesced()
		return true, nil
	}
	metrics.RecordQueueRejected()
	return false, nil
}

// Requests returns the buffered channel itself, so a request stays
// pending in the queue until a consumer is ready to run it.
func (q *InMemoryQueue) Requests() <-chan Request {
	return q.requests
}

// Len returns the current number of pending requests.
func (q *InMemoryQueue) Len() int {
	return len(q.requests)
}

// Close stops accepting requests. Pending ones are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
