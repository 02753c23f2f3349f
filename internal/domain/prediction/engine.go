// Package prediction turns aggregated parking outcomes into availability
// estimates. Three factors are computed independently and fused:
//
//   - time: how often parking succeeds at this day of week and hour
//   - spatial: how good the closest known zone is, decayed with distance
//   - location: how often parking succeeded right here, around this hour
//
// The Engine is stateless apart from its noise source; the data it works on
// comes from an immutable Snapshot plus whatever fresh rows the caller read.
package prediction

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Default engine parameters.
const (
	DefaultMinSamples     = 3
	DefaultMinSamplesTime = 5
	DefaultNoiseAmplitude = 0.05
	DefaultNearbyRadius   = 500.0 // meters
	DefaultLocationRadius = 50.0  // meters
	DefaultHourWindow     = 1
	DefaultTieThreshold   = 5 // probability points

	defaultTimeWeight     = 0.4
	defaultSpatialWeight  = 0.3
	defaultLocationWeight = 0.3

	neutralFactor      = 0.5
	unmappedAreaFactor = 0.3
)

// Engine computes factors, predictions and rankings.
type Engine struct {
	minSamples     int
	minSamplesTime int
	timeWeight     float64
	spatialWeight  float64
	locationWeight float64
	noiseAmplitude float64
	nearbyRadius   float64
	locationRadius float64
	hourWindow     int
	tieThreshold   int
	loc            *time.Location

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an engine with default parameters.
func New(opts ...Option) *Engine {
	e := &Engine{
		minSamples:     DefaultMinSamples,
		minSamplesTime: DefaultMinSamplesTime,
		timeWeight:     defaultTimeWeight,
		spatialWeight:  defaultSpatialWeight,
		locationWeight: defaultLocationWeight,
		noiseAmplitude: DefaultNoiseAmplitude,
		nearbyRadius:   DefaultNearbyRadius,
		locationRadius: DefaultLocationRadius,
		hourWindow:     DefaultHourWindow,
		tieThreshold:   DefaultTieThreshold,
		loc:            time.UTC,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // noise, not security
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MinSamples is the reliability threshold for zones.
func (e *Engine) MinSamples() int { return e.minSamples }

// LocationRadius is the radius, in meters, scanned by the location factor.
func (e *Engine) LocationRadius() float64 { return e.locationRadius }

// NearbyRadius is the radius, in meters, of Prediction.NearbyZones.
func (e *Engine) NearbyRadius() float64 { return e.nearbyRadius }

// Location is the time zone used for day/hour derivation.
func (e *Engine) Location() *time.Location { return e.loc }

// noise returns a uniform sample in [-A, +A].
func (e *Engine) noise() float64 {
	if e.noiseAmplitude == 0 {
		return 0
	}
	e.mu.Lock()
	u := e.rng.Float64()
	e.mu.Unlock()
	return (u*2 - 1) * e.noiseAmplitude
}

// Fuse combines the three factors into a 0..100 probability.
func (e *Engine) Fuse(timeF, spatialF, locationF float64) int {
	base := e.timeWeight*timeF + e.spatialWeight*spatialF + e.locationWeight*locationF
	return int(math.Round(clamp01(base+e.noise()) * 100))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return neutralFactor
	}
	return math.Max(0, math.Min(1, v))
}
