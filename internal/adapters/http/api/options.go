package api

import "github.com/okian/buscaparca/pkg/logger"

// Limits holds query defaults and caps applied when a request leaves a
// parameter out or asks for too much.
type Limits struct {
	DefaultMaxDistance   float64 // meters
	DefaultLimit         int
	MaxLimit             int
	DefaultHotZoneRadius float64 // kilometers
	DefaultParkingRadius float64 // meters
}

// DefaultLimits mirrors the documented API defaults.
func DefaultLimits() Limits {
	return Limits{
		DefaultMaxDistance:   1000,
		DefaultLimit:         10,
		MaxLimit:             50,
		DefaultHotZoneRadius: 2,
		DefaultParkingRadius: 1000,
	}
}

type options struct {
	limits          Limits
	ingestPerMinute int
	logger          logger.Logger
}

func defaultOptions() options {
	return options{limits: DefaultLimits(), ingestPerMinute: 120}
}

// Option configures a Server.
type Option func(*options)

// WithLimits overrides query defaults. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(o *options) {
		if l.DefaultMaxDistance > 0 {
			o.limits.DefaultMaxDistance = l.DefaultMaxDistance
		}
		if l.DefaultLimit > 0 {
			o.limits.DefaultLimit = l.DefaultLimit
		}
		if l.MaxLimit > 0 {
			o.limits.MaxLimit = l.MaxLimit
		}
		if l.DefaultHotZoneRadius > 0 {
			o.limits.DefaultHotZoneRadius = l.DefaultHotZoneRadius
		}
		if l.DefaultParkingRadius > 0 {
			o.limits.DefaultParkingRadius = l.DefaultParkingRadius
		}
	}
}

// WithIngestRateLimit sets the per-IP budget for ingestion routes per
// minute. Zero or less disables the limiter.
func WithIngestRateLimit(perMinute int) Option {
	return func(o *options) {
		o.ingestPerMinute = perMinute
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
