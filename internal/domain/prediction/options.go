package prediction

import (
	"math/rand"
	"time"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMinSamples sets how many outcomes a zone needs before it is trusted.
func WithMinSamples(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minSamples = n
		}
	}
}

// WithMinSamplesTime sets how many outcomes a time bucket needs before its
// observed rate replaces the heuristic.
func WithMinSamplesTime(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minSamplesTime = n
		}
	}
}

// WithWeights sets the fusion weights. Ignored unless all are non-negative
// and they sum to a positive value; they are normalized to sum to 1.
func WithWeights(timeW, spatialW, locationW float64) Option {
	return func(e *Engine) {
		sum := timeW + spatialW + locationW
		if timeW < 0 || spatialW < 0 || locationW < 0 || sum <= 0 {
			return
		}
		e.timeWeight = timeW / sum
		e.spatialWeight = spatialW / sum
		e.locationWeight = locationW / sum
	}
}

// WithNoiseAmplitude sets A in the uniform [-A, +A] noise added before
// rounding. Zero disables noise.
func WithNoiseAmplitude(a float64) Option {
	return func(e *Engine) {
		if a >= 0 && a <= 1 {
			e.noiseAmplitude = a
		}
	}
}

// WithSeed makes the noise sequence reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // noise, not security
	}
}

// WithNearbyRadius sets the radius, in meters, of Prediction.NearbyZones.
func WithNearbyRadius(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.nearbyRadius = m
		}
	}
}

// WithLocationRadius sets the radius, in meters, of the location factor.
func WithLocationRadius(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.locationRadius = m
		}
	}
}

// WithHourWindow sets the +/- hour window of the location factor.
func WithHourWindow(h int) Option {
	return func(e *Engine) {
		if h >= 0 && h < 12 {
			e.hourWindow = h
		}
	}
}

// WithTieThreshold sets the probability gap, in points, under which two
// ranked zones are ordered by distance instead.
func WithTieThreshold(points int) Option {
	return func(e *Engine) {
		if points >= 0 {
			e.tieThreshold = points
		}
	}
}

// WithLocation sets the time zone used to derive day of week and hour.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}
