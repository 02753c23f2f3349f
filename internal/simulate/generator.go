package simulate

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaswdr/faker"
)

// SeedZone is one demo location around the center with its target
// success rate.
type SeedZone struct {
	DLat, DLon  float64
	SuccessRate float64
}

// SeedZones are the eight demo locations, offsets in degrees.
var SeedZones = []SeedZone{
	{DLat: 0.002, DLon: 0.002, SuccessRate: 0.85},
	{DLat: -0.003, DLon: 0.001, SuccessRate: 0.75},
	{DLat: 0.001, DLon: -0.002, SuccessRate: 0.90},
	{DLat: -0.001, DLon: -0.003, SuccessRate: 0.60},
	{DLat: 0.004, DLon: 0.001, SuccessRate: 0.50},
	{DLat: -0.002, DLon: 0.003, SuccessRate: 0.80},
	{DLat: 0.003, DLon: -0.001, SuccessRate: 0.70},
	{DLat: -0.004, DLon: -0.001, SuccessRate: 0.55},
}

// hourWeights biases report hours toward the morning and evening rush.
var hourWeights = [24]int{
	2, 1, 1, 1, 1, 2,
	5, 8, 8, 6, 4, 3,
	3, 3, 3, 3, 4, 5,
	8, 8, 6, 5, 4, 3,
}

const (
	minReportsPerZone = 20
	maxReportsPerZone = 39
	jitterDeg         = 0.0002 // full width of the position jitter
	trajectorySpread  = 0.01
)

// Generator produces deterministic demo data for a seed.
type Generator struct {
	rng  *rand.Rand
	fake faker.Faker
	cfg  Config
	user string
}

// NewGenerator creates a generator for cfg.
func NewGenerator(cfg Config) *Generator {
	cfg = cfg.withDefaults()
	g := &Generator{
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		fake: faker.NewWithSeed(rand.NewSource(cfg.Seed)),
		cfg:  cfg,
		user: cfg.UserID,
	}
	if g.user == "" {
		g.user = "demo_" + strings.ToLower(g.fake.Person().FirstName())
	}
	return g
}

// UserID is the user every generated record is attributed to.
func (g *Generator) UserID() string { return g.user }

// Reports generates 20 to 39 reports per seed zone spread over the last
// cfg.Days days, with outcomes drawn from the zone's success rate.
func (g *Generator) Reports(now time.Time) []Report {
	var out []Report
	for _, z := range SeedZones {
		lat := g.cfg.Latitude + z.DLat
		lon := g.cfg.Longitude + z.DLon
		street := g.fake.Address().StreetName()

		n := minReportsPerZone + g.rng.Intn(maxReportsPerZone-minReportsPerZone+1)
		for i := 0; i < n; i++ {
			found := g.rng.Float64() < z.SuccessRate
			out = append(out, Report{
				ReportID:       uuid.NewString(),
				UserID:         g.user,
				Latitude:       lat + g.jitter(),
				Longitude:      lon + g.jitter(),
				FoundParking:   found,
				SearchDuration: g.searchDuration(found),
				StreetName:     street,
				Timestamp:      g.timestamp(now).UnixMilli(),
			})
		}
	}
	return out
}

// Samples generates n GPS samples scattered around the center.
func (g *Generator) Samples(n int) []Sample {
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Sample{
			UserID:    g.user,
			Latitude:  g.cfg.Latitude + (g.rng.Float64()-0.5)*trajectorySpread,
			Longitude: g.cfg.Longitude + (g.rng.Float64()-0.5)*trajectorySpread,
			Speed:     g.rng.Float64() * 20,
			Heading:   g.rng.Float64() * 360,
			Accuracy:  g.rng.Float64()*20 + 5,
		})
	}
	return out
}

func (g *Generator) jitter() float64 {
	return (g.rng.Float64() - 0.5) * jitterDeg
}

// searchDuration is 60-359 s for a found spot and 300-1199 s otherwise.
func (g *Generator) searchDuration(found bool) int {
	if found {
		return 60 + g.rng.Intn(300)
	}
	return 300 + g.rng.Intn(900)
}

// timestamp picks a day in the window and a rush-weighted hour in the
// configured location. Times that would land in the future move back a week.
func (g *Generator) timestamp(now time.Time) time.Time {
	day := now.In(g.cfg.Location).AddDate(0, 0, -g.rng.Intn(g.cfg.Days))
	at := time.Date(day.Year(), day.Month(), day.Day(), g.hour(), g.rng.Intn(60), 0, 0, g.cfg.Location)
	if at.After(now) {
		at = at.AddDate(0, 0, -7)
	}
	return at
}

func (g *Generator) hour() int {
	total := 0
	for _, w := range hourWeights {
		total += w
	}
	pick := g.rng.Intn(total)
	for h, w := range hourWeights {
		if pick < w {
			return h
		}
		pick -= w
	}
	return len(hourWeights) - 1
}
