// Package dedupe makes client report submission idempotent. Mobile clients
// retry uploads after flaky connections; each retry carries the same report
// ID and must not be counted twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxSize = 50000

// Deduper records seen report IDs to ensure at-most-once ingestion.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a report that failed to persist can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id   string
	seen time.Time
}

// inMemoryDeduper keeps IDs in insertion order. When full, the oldest ID is
// evicted; IDs older than ttl count as unseen.
type inMemoryDeduper struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front is oldest
	maxSize int        // <= 0 means unbounded
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)

	if _, ok := d.index[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.removeElement(d.order.Front())
	}
	d.index[id] = d.order.PushBack(&entry{id: id, seen: now})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.index[id]; ok {
		d.removeElement(el)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

// expire drops entries older than ttl. Must be called with d.mu held.
func (d *inMemoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if now.Sub(el.Value.(*entry).seen) < d.ttl {
			return
		}
		d.removeElement(el)
	}
}

func (d *inMemoryDeduper) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.index, el.Value.(*entry).id)
	d.order.Remove(el)
}
