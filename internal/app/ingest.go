package service

import (
	"context"
	"errors"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/logger"
	"github.com/okian/buscaparca/pkg/metrics"
)

// RecordResult describes the outcome of a parking report.
type RecordResult struct {
	Event     model.ParkingEvent
	Zone      model.ParkingZone
	Duplicate bool
}

// RecordTrajectory stores one GPS sample. A zero timestamp means now.
func (s *Service) RecordTrajectory(ctx context.Context, p model.TrajectoryPoint) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now()
	}
	if err := s.store.InsertTrajectoryPoint(ctx, p); err != nil {
		s.reject("trajectory", err)
		return err
	}
	metrics.RecordTrajectoryPoint()
	return nil
}

// RecordParkingEvent stores a parking outcome and folds it into its zone.
//
// reportID is an optional client key. A report whose key was already
// accepted is acknowledged as a duplicate without being stored again.
// Every refreshEvery recorded events a model refresh is requested.
func (s *Service) RecordParkingEvent(ctx context.Context, e model.ParkingEvent, reportID string) (RecordResult, error) {
	e.Stamp(s.now(), s.engine.Location())
	if err := e.Validate(); err != nil {
		s.reject("parking_event", err)
		return RecordResult{}, err
	}

	if reportID != "" && s.deduper.SeenAndRecord(ctx, reportID) {
		metrics.RecordDuplicateReport()
		s.logger.Debug(ctx, "duplicate report", logger.String("reportId", reportID))
		return RecordResult{Event: e, Duplicate: true}, nil
	}

	zone, err := s.store.InsertParkingEvent(ctx, e)
	if err != nil {
		if reportID != "" {
			s.deduper.Unrecord(ctx, reportID)
		}
		s.reject("parking_event", err)
		return RecordResult{}, err
	}
	metrics.RecordParkingEvent(e.FoundParking, e.SearchDuration)

	if n := s.recorded.Add(1); n%s.refreshEvery == 0 {
		s.TriggerRefresh(ctx, model.RefreshEventThreshold)
	}
	return RecordResult{Event: e, Zone: zone}, nil
}

func (s *Service) reject(kind string, err error) {
	reason := errorKind(err)
	metrics.RecordRejectedReport(kind, reason)
	if !errors.Is(err, model.ErrValidation) {
		s.logger.Error(context.Background(), "report not stored",
			logger.String("kind", kind),
			logger.Error(err),
		)
	}
}
