package dedupe

import "time"

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of remembered IDs. Zero or negative means
// unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithTTL forgets IDs older than ttl. Zero keeps IDs until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(d *inMemoryDeduper) {
		if ttl >= 0 {
			d.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *inMemoryDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
