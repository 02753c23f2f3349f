package prediction

import (
	"time"

	"github.com/okian/buscaparca/internal/domain/model"
)

// Heuristic prior used when a time bucket lacks samples.
const (
	heuristicBase = 0.65
	rushPenalty   = 0.25
	nightBonus    = 0.20
	weekendBonus  = 0.15
)

// TimePatterns maps (day of week, hour) to observed outcomes.
type TimePatterns map[model.TimeKey]model.TimePattern

// BuildTimePatterns groups events by their exact day of week and hour.
func BuildTimePatterns(events []model.ParkingEvent) TimePatterns {
	type acc struct {
		success, total, duration int
	}
	buckets := make(map[model.TimeKey]*acc)
	for _, ev := range events {
		k := model.TimeKey{Day: time.Weekday(ev.DayOfWeek), Hour: ev.Hour}
		a, ok := buckets[k]
		if !ok {
			a = &acc{}
			buckets[k] = a
		}
		a.total++
		a.duration += ev.SearchDuration
		if ev.FoundParking {
			a.success++
		}
	}

	out := make(TimePatterns, len(buckets))
	for k, a := range buckets {
		out[k] = model.TimePattern{
			SuccessCount:      a.success,
			TotalCount:        a.total,
			SuccessRate:       float64(a.success) / float64(a.total),
			AvgSearchDuration: float64(a.duration) / float64(a.total),
		}
	}
	return out
}

// TimeFactor returns the observed success rate for ts's bucket when it has
// enough samples, otherwise the rule-based prior.
func (e *Engine) TimeFactor(ts time.Time, patterns TimePatterns) float64 {
	local := ts.In(e.loc)
	key := model.TimeKey{Day: local.Weekday(), Hour: local.Hour()}
	if p, ok := patterns[key]; ok && p.TotalCount >= e.minSamplesTime {
		return clamp01(p.SuccessRate)
	}
	return Heuristic(key.Day, key.Hour)
}

// Heuristic is the prior for a bucket without data: rush hours are hard,
// nights and weekends are easy.
func Heuristic(day time.Weekday, hour int) float64 {
	f := heuristicBase
	if (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19) {
		f -= rushPenalty
	}
	if hour >= 22 || hour <= 6 {
		f += nightBonus
	}
	if day == time.Saturday || day == time.Sunday {
		f += weekendBonus
	}
	return clamp01(f)
}
