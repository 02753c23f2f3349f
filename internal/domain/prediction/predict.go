package prediction

import (
	"math"
	"sort"
	"time"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/geo"
)

// Query is the input of a single prediction. Zones and Events are whatever
// the caller could gather around the point; the engine does no I/O.
type Query struct {
	Latitude  float64
	Longitude float64
	Time      time.Time
	Zones     []model.ParkingZone
	Events    []model.ParkingEvent
}

// Predict fuses the three factors for the query point.
func (e *Engine) Predict(q Query, patterns TimePatterns) model.Prediction {
	timeF := e.TimeFactor(q.Time, patterns)
	spatialF := e.SpatialFactor(q.Latitude, q.Longitude, q.Zones)
	locationF := e.LocationFactor(q.Latitude, q.Longitude, q.Time, q.Events)

	return model.Prediction{
		Latitude:       q.Latitude,
		Longitude:      q.Longitude,
		Timestamp:      q.Time,
		Probability:    e.Fuse(timeF, spatialF, locationF),
		TimeFactor:     timeF,
		SpatialFactor:  spatialF,
		LocationFactor: locationF,
		NearbyZones:    e.NearbyZones(q.Latitude, q.Longitude, q.Zones),
	}
}

// NearbyZones returns the reliable zones within the nearby radius, best
// success rate first.
func (e *Engine) NearbyZones(lat, lon float64, zones []model.ParkingZone) []model.ParkingZone {
	out := make([]model.ParkingZone, 0)
	for _, z := range zones {
		if !z.Reliable(e.minSamples) {
			continue
		}
		if geo.DistanceMeters(lat, lon, z.Latitude, z.Longitude) <= e.nearbyRadius {
			out = append(out, z)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SuccessRate() > out[j].SuccessRate()
	})
	return out
}

// RankZones predicts every reliable candidate inside maxDistance of the
// origin and orders them best first. Candidates whose probabilities are
// within the tie threshold of each other are ordered by distance instead,
// so noise does not reshuffle near-equal options between calls.
func (e *Engine) RankZones(origin Query, candidates []model.ParkingZone, patterns TimePatterns, maxDistance float64, limit int) []model.RankedZone {
	ranked := make([]model.RankedZone, 0, len(candidates))
	for _, z := range candidates {
		if !z.Reliable(e.minSamples) {
			continue
		}
		d := geo.DistanceMeters(origin.Latitude, origin.Longitude, z.Latitude, z.Longitude)
		if d > maxDistance {
			continue
		}
		p := e.Predict(Query{
			Latitude:  z.Latitude,
			Longitude: z.Longitude,
			Time:      origin.Time,
			Zones:     origin.Zones,
			Events:    origin.Events,
		}, patterns)
		ranked = append(ranked, model.RankedZone{
			Latitude:    z.Latitude,
			Longitude:   z.Longitude,
			Probability: p.Probability,
			Distance:    math.Round(d),
			SuccessRate: z.SuccessRate(),
			TotalCount:  z.TotalCount,
		})
	}

	SortRanked(ranked, e.tieThreshold)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// SortRanked orders by probability descending, except that entries within
// threshold points of each other are ordered by distance ascending.
func SortRanked(ranked []model.RankedZone, threshold int) {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		diff := a.Probability - b.Probability
		if diff > threshold || diff < -threshold {
			return diff > 0
		}
		return a.Distance < b.Distance
	})
}

// HotZones weights zones by success rate dampened by log volume, heaviest
// first.
func (e *Engine) HotZones(zones []model.ParkingZone) []model.HotZone {
	out := make([]model.HotZone, 0, len(zones))
	for _, z := range zones {
		out = append(out, model.HotZone{
			Latitude:    z.Latitude,
			Longitude:   z.Longitude,
			Weight:      HotZoneWeight(z),
			Radius:      z.Radius,
			SuccessRate: z.SuccessRate(),
			Source:      model.SourceCrowd,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// HotZoneWeight is successRate * ln(totalCount + 1).
func HotZoneWeight(z model.ParkingZone) float64 {
	return z.SuccessRate() * math.Log(float64(z.TotalCount)+1)
}

// MergeZones returns the union of a and b keyed by zone key. Entries from b
// win, so fresher rows replace cached ones.
func MergeZones(a, b []model.ParkingZone) []model.ParkingZone {
	if len(b) == 0 {
		return a
	}
	idx := make(map[string]int, len(a)+len(b))
	out := make([]model.ParkingZone, 0, len(a)+len(b))
	for _, z := range a {
		idx[z.Key] = len(out)
		out = append(out, z)
	}
	for _, z := range b {
		if i, ok := idx[z.Key]; ok {
			out[i] = z
			continue
		}
		idx[z.Key] = len(out)
		out = append(out, z)
	}
	return out
}
