// Package simulate seeds a running parking service with demo reports and
// reads back what it learned. It drives the public HTTP API only.
package simulate

import (
	"io"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Latitude     float64       // Center of the seeded area
	Longitude    float64       // Center of the seeded area
	Days         int           // How far back reports are spread
	Workers      int           // Number of concurrent submitters
	Trajectories int           // GPS samples to post alongside reports
	Timeout      time.Duration // HTTP request timeout
	Seed         int64         // Generator seed; 0 picks one from the clock
	UserID       string        // Reporting user; empty generates one
	Location     *time.Location
	Progress     io.Writer // Progress bar output; nil disables it
}

// Defaults for Config fields left at zero.
const (
	DefaultBaseURL      = "http://localhost:9080"
	DefaultLatitude     = 40.4168
	DefaultLongitude    = -3.7038
	DefaultDays         = 30
	DefaultWorkers      = 4
	DefaultTrajectories = 100
	DefaultTimeout      = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Latitude == 0 && c.Longitude == 0 {
		c.Latitude, c.Longitude = DefaultLatitude, DefaultLongitude
	}
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Trajectories < 0 {
		c.Trajectories = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Report is the body posted to /parking-event.
type Report struct {
	ReportID       string  `json:"reportId"`
	UserID         string  `json:"userId"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	FoundParking   bool    `json:"foundParking"`
	SearchDuration int     `json:"searchDuration"`
	StreetName     string  `json:"streetName,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// Sample is the body posted to /trajectory.
type Sample struct {
	UserID    string  `json:"userId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
	Accuracy  float64 `json:"accuracy"`
}

// RankedZone mirrors a /find-parking entry.
type RankedZone struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Probability int     `json:"probability"`
	Distance    float64 `json:"distance"`
	SuccessRate float64 `json:"successRate"`
	TotalCount  int     `json:"totalCount"`
}

// Prediction mirrors the /predict answer.
type Prediction struct {
	Probability    int     `json:"probability"`
	TimeFactor     float64 `json:"timeFactor"`
	SpatialFactor  float64 `json:"spatialFactor"`
	LocationFactor float64 `json:"locationFactor"`
}

// ServiceStats mirrors the counters of /stats.
type ServiceStats struct {
	Trajectories int64 `json:"trajectories"`
	Events       int64 `json:"events"`
	Zones        int64 `json:"zones"`
}

// Summary is the outcome of a run.
type Summary struct {
	ReportsGenerated int
	ReportsRecorded  int
	ReportsDuplicate int
	ReportsFailed    int
	SamplesRecorded  int
	Throttled        int
	Best             []RankedZone
	Prediction       Prediction
	Stats            ServiceStats
	Duration         time.Duration
}
