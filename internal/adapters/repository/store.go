// Package repository persists trajectory samples, parking events and the
// zone aggregates derived from them.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/metrics"
)

// Store is the storage contract the service depends on.
type Store interface {
	// InsertTrajectoryPoint appends a GPS sample.
	InsertTrajectoryPoint(ctx context.Context, p model.TrajectoryPoint) error

	// InsertParkingEvent appends the event and folds it into its zone in one
	// atomic step. It returns the zone after the update.
	InsertParkingEvent(ctx context.Context, e model.ParkingEvent) (model.ParkingZone, error)

	// UpsertZoneAggregate finds or creates the zone for the point and
	// records one outcome in it.
	UpsertZoneAggregate(ctx context.Context, lat, lon float64, found bool, at time.Time) (model.ParkingZone, error)

	// QueryZonesInRadius returns zones with at least minSamples outcomes
	// within radiusKm, best success rate first.
	QueryZonesInRadius(ctx context.Context, lat, lon, radiusKm float64, minSamples int) ([]model.ParkingZone, error)

	// ListZones returns up to limit zones with at least minSamples outcomes,
	// busiest first.
	ListZones(ctx context.Context, minSamples, limit int) ([]model.ParkingZone, error)

	// QueryRecentEvents returns up to limit events, newest first.
	QueryRecentEvents(ctx context.Context, limit int) ([]model.ParkingEvent, error)

	// QueryEventsNear returns events within radiusMeters of the point.
	QueryEventsNear(ctx context.Context, lat, lon, radiusMeters float64) ([]model.ParkingEvent, error)

	// CountStats returns row counts.
	CountStats(ctx context.Context) (model.Stats, error)

	// PruneTrajectories deletes samples older than before.
	PruneTrajectories(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

// observe records latency and failures of a store operation. Validation
// errors are the caller's fault and are not counted as store errors.
func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreLatency(op, time.Since(start))
	if *err != nil && !errors.Is(*err, model.ErrValidation) {
		metrics.RecordStoreError(op)
	}
}
