package prediction

import (
	"time"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/geo"
)

// SpatialFactor scores the best reliable zone whose doubled radius covers
// the point, decayed linearly with distance. With no reliable zones at all
// it returns the neutral 0.5; with zones that are all out of range it
// returns 0.3.
func (e *Engine) SpatialFactor(lat, lon float64, zones []model.ParkingZone) float64 {
	best := -1.0
	reliable := 0
	for _, z := range zones {
		if !z.Reliable(e.minSamples) {
			continue
		}
		reliable++
		reach := 2 * z.Radius
		if reach <= 0 {
			continue
		}
		d := geo.DistanceMeters(lat, lon, z.Latitude, z.Longitude)
		if d > reach {
			continue
		}
		score := z.SuccessRate() * (1 - d/reach)
		if score > best {
			best = score
		}
	}
	switch {
	case reliable == 0:
		return neutralFactor
	case best < 0:
		return unmappedAreaFactor
	default:
		return clamp01(best)
	}
}

// LocationFactor is the success rate of events reported within the
// location radius, preferring those within the hour window of ts.
func (e *Engine) LocationFactor(lat, lon float64, ts time.Time, events []model.ParkingEvent) float64 {
	near := make([]model.ParkingEvent, 0, len(events))
	for _, ev := range events {
		if geo.DistanceMeters(lat, lon, ev.Latitude, ev.Longitude) <= e.locationRadius {
			near = append(near, ev)
		}
	}
	if len(near) < e.minSamples {
		return neutralFactor
	}

	hour := ts.In(e.loc).Hour()
	var success, total int
	for _, ev := range near {
		if hourDistance(ev.Hour, hour) <= e.hourWindow {
			total++
			if ev.FoundParking {
				success++
			}
		}
	}
	if total == 0 {
		for _, ev := range near {
			total++
			if ev.FoundParking {
				success++
			}
		}
	}
	return float64(success) / float64(total)
}

// hourDistance is the circular distance between two hours of the day.
func hourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	d %= 24
	if d > 12 {
		d = 24 - d
	}
	return d
}
