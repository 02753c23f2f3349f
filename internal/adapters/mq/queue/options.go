package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets how many requests may wait at once.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithCoalescing controls what happens when the queue is full. With
// coalescing on, a new request is folded into the pending ones and reported
// as accepted; with it off, the request is rejected.
func WithCoalescing(on bool) Option {
	return func(q *InMemoryQueue) {
		q.coalesce = on
	}
}
