package model

import "time"

// Stats are row counts held by the store.
type Stats struct {
	Trajectories int64
	Events       int64
	Zones        int64
}

// ModelInfo describes the snapshot currently serving predictions.
type ModelInfo struct {
	BuiltAt  time.Time
	Patterns int
	Zones    int
	Events   int
}

// Refresh reasons.
const (
	RefreshStartup        = "startup"
	RefreshEventThreshold = "event_threshold"
	RefreshPeriodic       = "periodic"
	RefreshManual         = "manual"
)

// RefreshRequest asks the refresh worker to rebuild the model snapshot.
type RefreshRequest struct {
	Reason      string
	RequestedAt time.Time
}
