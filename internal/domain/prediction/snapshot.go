package prediction

import (
	"time"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/geo"
)

// Snapshot is the model state a refresh produces. It is never mutated after
// NewSnapshot returns; a refresh builds a new one and swaps the pointer.
type Snapshot struct {
	Patterns TimePatterns
	Zones    []model.ParkingZone // reliable zones only
	Events   []model.ParkingEvent
	BuiltAt  time.Time
}

// NewSnapshot builds patterns from events and keeps the reliable zones.
func NewSnapshot(events []model.ParkingEvent, zones []model.ParkingZone, minSamples int, builtAt time.Time) *Snapshot {
	evs := make([]model.ParkingEvent, len(events))
	copy(evs, events)
	return &Snapshot{
		Patterns: BuildTimePatterns(evs),
		Zones:    model.FilterReliable(zones, minSamples),
		Events:   evs,
		BuiltAt:  builtAt,
	}
}

// EmptySnapshot serves heuristics only.
func EmptySnapshot() *Snapshot {
	return &Snapshot{Patterns: TimePatterns{}}
}

// Info summarizes the snapshot.
func (s *Snapshot) Info() model.ModelInfo {
	return model.ModelInfo{
		BuiltAt:  s.BuiltAt,
		Patterns: len(s.Patterns),
		Zones:    len(s.Zones),
		Events:   len(s.Events),
	}
}

// ZonesWithin returns cached zones inside radius meters of the point.
func (s *Snapshot) ZonesWithin(lat, lon, radius float64) []model.ParkingZone {
	box := geo.BoundingBox(lat, lon, radius)
	out := make([]model.ParkingZone, 0)
	for _, z := range s.Zones {
		if !box.Contains(z.Latitude, z.Longitude) {
			continue
		}
		if geo.DistanceMeters(lat, lon, z.Latitude, z.Longitude) <= radius {
			out = append(out, z)
		}
	}
	return out
}

// EventsWithin returns cached events inside radius meters of the point.
func (s *Snapshot) EventsWithin(lat, lon, radius float64) []model.ParkingEvent {
	box := geo.BoundingBox(lat, lon, radius)
	out := make([]model.ParkingEvent, 0)
	for _, ev := range s.Events {
		if !box.Contains(ev.Latitude, ev.Longitude) {
			continue
		}
		if geo.DistanceMeters(lat, lon, ev.Latitude, ev.Longitude) <= radius {
			out = append(out, ev)
		}
	}
	return out
}
