package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/buscaparca/internal/domain/zone"
)

type options struct {
	identity zone.Identity
	now      func() time.Time
	newID    func() string
}

func defaultOptions() options {
	return options{
		identity: zone.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithIdentity sets the zone identity scheme.
func WithIdentity(id zone.Identity) Option {
	return func(o *options) {
		if id.Validate() == nil {
			o.identity = id
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides event and zone ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}
