package model

import "time"

// DefaultZoneRadius is the radius given to newly created zones, in meters.
const DefaultZoneRadius = 100.0

// ParkingZone aggregates every outcome reported at a location.
// SuccessCount never exceeds TotalCount.
type ParkingZone struct {
	Key          string
	Latitude     float64
	Longitude    float64
	Radius       float64 // meters
	SuccessCount int
	TotalCount   int
	LastUpdated  time.Time
}

// SuccessRate is SuccessCount/TotalCount, or 0 for an empty zone.
func (z ParkingZone) SuccessRate() float64 {
	if z.TotalCount <= 0 {
		return 0
	}
	return float64(z.SuccessCount) / float64(z.TotalCount)
}

// Reliable reports whether the zone has at least minSamples outcomes.
func (z ParkingZone) Reliable(minSamples int) bool {
	return z.TotalCount >= minSamples
}

// Record folds one outcome into the zone.
func (z *ParkingZone) Record(found bool, at time.Time) {
	z.TotalCount++
	if found {
		z.SuccessCount++
	}
	if at.After(z.LastUpdated) {
		z.LastUpdated = at
	}
}

// FilterReliable returns the zones with at least minSamples outcomes.
func FilterReliable(zones []ParkingZone, minSamples int) []ParkingZone {
	out := make([]ParkingZone, 0, len(zones))
	for _, z := range zones {
		if z.Reliable(minSamples) {
			out = append(out, z)
		}
	}
	return out
}
