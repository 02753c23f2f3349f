package model

import "time"

// TimeKey identifies a time-pattern bucket.
type TimeKey struct {
	Day  time.Weekday
	Hour int
}

// TimePattern aggregates outcomes for one (day of week, hour) bucket.
type TimePattern struct {
	SuccessCount      int
	TotalCount        int
	SuccessRate       float64
	AvgSearchDuration float64 // seconds
}

// Prediction is the answer to "how likely is parking here, now".
type Prediction struct {
	Latitude       float64
	Longitude      float64
	Timestamp      time.Time
	Probability    int // 0..100
	TimeFactor     float64
	SpatialFactor  float64
	LocationFactor float64
	NearbyZones    []ParkingZone
}

// RankedZone is one entry of a find-best-parking answer.
type RankedZone struct {
	Latitude    float64
	Longitude   float64
	Probability int
	Distance    float64 // meters, rounded
	SuccessRate float64
	TotalCount  int
}

// Hot-zone sources.
const (
	SourceCrowd    = "crowd"
	SourceOpenData = "open_data"
)

// HotZone is a weighted zone used for heat-map style displays.
type HotZone struct {
	Latitude    float64
	Longitude   float64
	Weight      float64
	Radius      float64
	SuccessRate float64
	Source      string
}

// PublicParking is an off-street car park published by a city open-data feed.
type PublicParking struct {
	Name        string
	Address     string
	District    string
	Latitude    float64
	Longitude   float64
	Capacity    int
	FreePlaces  int
	Occupied    int
	Distance    float64 // meters from the query point, 0 when unset
	SuccessRate float64 // free/capacity
}
