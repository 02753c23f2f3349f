package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/buscaparca/internal/adapters/repository"
	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/internal/domain/prediction"
	"github.com/okian/buscaparca/pkg/geo"
	"github.com/okian/buscaparca/pkg/logger"
	"github.com/okian/buscaparca/pkg/metrics"
)

// Overview is the answer to a stats query.
type Overview struct {
	Store model.Stats
	Model model.ModelInfo
}

func checkCoordinate(lat, lon float64) error {
	if !geo.ValidCoordinate(lat, lon) {
		return fmt.Errorf("%w: coordinate (%v, %v) out of range", model.ErrValidation, lat, lon)
	}
	return nil
}

// degrade reports whether a store read failed in a way the caller should
// answer from the snapshot instead.
func (s *Service) degrade(ctx context.Context, op, input string, err error) bool {
	if !errors.Is(err, repository.ErrStoreUnavailable) {
		return false
	}
	metrics.RecordFallback(op, "snapshot")
	s.logger.Warn(ctx, "store unavailable, using snapshot",
		logger.String("op", op),
		logger.String("input", input),
		logger.Error(err),
	)
	return true
}

// zonesNear reads reliable zones around the point, falling back to the
// snapshot.
func (s *Service) zonesNear(ctx context.Context, op string, snap *prediction.Snapshot, lat, lon, radiusMeters float64) ([]model.ParkingZone, error) {
	rctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	zones, err := s.store.QueryZonesInRadius(rctx, lat, lon, radiusMeters/1000, s.engine.MinSamples())
	if err != nil {
		if s.degrade(ctx, op, "zones", err) {
			return snap.ZonesWithin(lat, lon, radiusMeters), nil
		}
		return nil, err
	}
	return zones, nil
}

// eventsNear reads events around the point, falling back to the snapshot.
func (s *Service) eventsNear(ctx context.Context, op string, snap *prediction.Snapshot, lat, lon, radiusMeters float64) ([]model.ParkingEvent, error) {
	rctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	events, err := s.store.QueryEventsNear(rctx, lat, lon, radiusMeters)
	if err != nil {
		if s.degrade(ctx, op, "events", err) {
			return snap.EventsWithin(lat, lon, radiusMeters), nil
		}
		return nil, err
	}
	return events, nil
}

// Predict estimates the probability of finding parking at the point. A
// zero ts means now.
func (s *Service) Predict(ctx context.Context, lat, lon float64, ts time.Time) (model.Prediction, error) {
	const op = "predict"
	start := time.Now()
	defer func() { metrics.RecordQuery(op, time.Since(start)) }()

	if err := checkCoordinate(lat, lon); err != nil {
		return model.Prediction{}, err
	}
	if ts.IsZero() {
		ts = s.now()
	}
	snap := s.Snapshot()

	fresh, err := s.zonesNear(ctx, op, snap, lat, lon, s.engine.NearbyRadius())
	if err != nil {
		return model.Prediction{}, err
	}
	events, err := s.eventsNear(ctx, op, snap, lat, lon, s.engine.LocationRadius())
	if err != nil {
		return model.Prediction{}, err
	}

	p := s.engine.Predict(prediction.Query{
		Latitude:  lat,
		Longitude: lon,
		Time:      ts,
		Zones:     prediction.MergeZones(snap.Zones, fresh),
		Events:    events,
	}, snap.Patterns)
	metrics.RecordPrediction(op, p.Probability, p.TimeFactor, p.SpatialFactor, p.LocationFactor)
	return p, nil
}

// FindBestParking ranks reliable zones within maxDistance meters of the
// point by predicted probability.
func (s *Service) FindBestParking(ctx context.Context, lat, lon, maxDistance float64, limit int) ([]model.RankedZone, error) {
	const op = "find_parking"
	start := time.Now()
	defer func() { metrics.RecordQuery(op, time.Since(start)) }()

	if err := checkCoordinate(lat, lon); err != nil {
		return nil, err
	}
	if maxDistance <= 0 {
		return nil, fmt.Errorf("%w: maxDistance must be positive", model.ErrValidation)
	}
	snap := s.Snapshot()

	candidates, err := s.zonesNear(ctx, op, snap, lat, lon, maxDistance)
	if err != nil {
		return nil, err
	}
	events, err := s.eventsNear(ctx, op, snap, lat, lon, maxDistance+s.engine.LocationRadius())
	if err != nil {
		return nil, err
	}

	origin := prediction.Query{
		Latitude:  lat,
		Longitude: lon,
		Time:      s.now(),
		Zones:     prediction.MergeZones(snap.Zones, candidates),
		Events:    events,
	}
	ranked := s.engine.RankZones(origin, candidates, snap.Patterns, maxDistance, limit)
	for _, r := range ranked {
		metrics.RecordProbability(op, r.Probability)
	}
	return ranked, nil
}

// HotZones returns weighted zones within radiusKm of the point, crowd
// zones merged with open-data car parks when that source is enabled.
func (s *Service) HotZones(ctx context.Context, lat, lon, radiusKm float64) ([]model.HotZone, error) {
	const op = "hot_zones"
	start := time.Now()
	defer func() { metrics.RecordQuery(op, time.Since(start)) }()

	if err := checkCoordinate(lat, lon); err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", model.ErrValidation)
	}
	radius := radiusKm * 1000

	zones, err := s.zonesNear(ctx, op, s.Snapshot(), lat, lon, radius)
	if err != nil {
		return nil, err
	}
	hot := s.engine.HotZones(zones)

	if s.openData != nil {
		extra, err := s.openData.HotZones(ctx)
		if err != nil {
			metrics.RecordFallback(op, "crowd_only")
			s.logger.Warn(ctx, "open data unavailable", logger.Error(err))
		}
		for _, z := range extra {
			if geo.DistanceMeters(lat, lon, z.Latitude, z.Longitude) <= radius {
				hot = append(hot, z)
			}
		}
		sort.SliceStable(hot, func(i, j int) bool { return hot[i].Weight > hot[j].Weight })
	}

	if len(hot) > s.maxHotZones {
		hot = hot[:s.maxHotZones]
	}
	return hot, nil
}

// NearbyPublicParking lists open-data car parks around the point. A non-empty
// district keeps only facilities in that district, compared case-insensitively.
// It never fails because of the feed; an unavailable feed yields an empty list.
func (s *Service) NearbyPublicParking(ctx context.Context, lat, lon, radiusMeters float64, district string) ([]model.PublicParking, error) {
	if err := checkCoordinate(lat, lon); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", model.ErrValidation)
	}
	if s.openData == nil {
		return []model.PublicParking{}, nil
	}
	parks, err := s.openData.Nearby(ctx, lat, lon, radiusMeters)
	if err != nil {
		metrics.RecordFallback("public_parking", "empty")
		s.logger.Warn(ctx, "open data unavailable", logger.Error(err))
		return []model.PublicParking{}, nil
	}
	return inDistrict(parks, district), nil
}

func inDistrict(parks []model.PublicParking, district string) []model.PublicParking {
	district = strings.TrimSpace(district)
	if district == "" {
		return parks
	}
	out := make([]model.PublicParking, 0, len(parks))
	for _, p := range parks {
		if strings.EqualFold(strings.TrimSpace(p.District), district) {
			out = append(out, p)
		}
	}
	return out
}

// Stats returns store counters and the current model summary.
func (s *Service) Stats(ctx context.Context) (Overview, error) {
	rctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	st, err := s.store.CountStats(rctx)
	if err != nil {
		return Overview{}, err
	}
	metrics.UpdateStoreTotals(st.Trajectories, st.Events, st.Zones)
	return Overview{Store: st, Model: s.Snapshot().Info()}, nil
}
