package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/geo"
)

// zoneCell guards one zone's counters. lat and lon copy the zone center,
// which never changes, so lookups can read them without the lock.
type zoneCell struct {
	lat, lon float64

	mu   sync.Mutex
	zone model.ParkingZone
}

func (c *zoneCell) snapshot() model.ParkingZone {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zone
}

// MemoryStore keeps everything in process memory. Zone updates lock only
// the zone they touch; the index lock is held just long enough to find or
// create the zone.
type MemoryStore struct {
	opts options

	mu           sync.RWMutex
	trajectories []model.TrajectoryPoint
	events       []model.ParkingEvent
	zones        map[string]*zoneCell
	zoneOrder    []*zoneCell // creation order, scanned by the epsilon scheme

	closed atomic.Bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:  o,
		zones: make(map[string]*zoneCell),
	}
}

func (s *MemoryStore) check(ctx context.Context, op string) error {
	if s.closed.Load() {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MemoryStore) InsertTrajectoryPoint(ctx context.Context, p model.TrajectoryPoint) (err error) {
	defer observe("insert_trajectory", time.Now(), &err)
	if err = s.check(ctx, "insert trajectory"); err != nil {
		return err
	}
	if err = p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.trajectories = append(s.trajectories, p)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) InsertParkingEvent(ctx context.Context, e model.ParkingEvent) (z model.ParkingZone, err error) {
	defer observe("insert_event", time.Now(), &err)
	if err = s.check(ctx, "insert event"); err != nil {
		return model.ParkingZone{}, err
	}
	if err = e.Validate(); err != nil {
		return model.ParkingZone{}, err
	}
	if e.ID == "" {
		e.ID = s.opts.newID()
	}

	cell := s.locate(e.Latitude, e.Longitude, e.Timestamp)
	cell.mu.Lock()
	defer cell.mu.Unlock()

	cell.zone.Record(e.FoundParking, e.Timestamp)
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return cell.zone, nil
}

func (s *MemoryStore) UpsertZoneAggregate(ctx context.Context, lat, lon float64, found bool, at time.Time) (z model.ParkingZone, err error) {
	defer observe("upsert_zone", time.Now(), &err)
	if err = s.check(ctx, "upsert zone"); err != nil {
		return model.ParkingZone{}, err
	}
	if !geo.ValidCoordinate(lat, lon) {
		return model.ParkingZone{}, fmt.Errorf("%w: coordinate (%v, %v)", model.ErrValidation, lat, lon)
	}

	cell := s.locate(lat, lon, at)
	cell.mu.Lock()
	defer cell.mu.Unlock()
	cell.zone.Record(found, at)
	return cell.zone, nil
}

// locate finds or creates the zone cell for the point.
func (s *MemoryStore) locate(lat, lon float64, at time.Time) *zoneCell {
	id := s.opts.identity

	if id.Grid() {
		key, cLat, cLon := id.CellKey(lat, lon)
		s.mu.RLock()
		cell, ok := s.zones[key]
		s.mu.RUnlock()
		if ok {
			return cell
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if cell, ok := s.zones[key]; ok {
			return cell
		}
		return s.addLocked(id.New(key, cLat, cLon, at))
	}

	s.mu.RLock()
	cell := s.matchLocked(lat, lon)
	s.mu.RUnlock()
	if cell != nil {
		return cell
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cell := s.matchLocked(lat, lon); cell != nil {
		return cell
	}
	return s.addLocked(id.New(s.opts.newID(), lat, lon, at))
}

func (s *MemoryStore) matchLocked(lat, lon float64) *zoneCell {
	for _, c := range s.zoneOrder {
		if s.opts.identity.Matches(c.lat, c.lon, lat, lon) {
			return c
		}
	}
	return nil
}

func (s *MemoryStore) addLocked(z model.ParkingZone) *zoneCell {
	cell := &zoneCell{lat: z.Latitude, lon: z.Longitude, zone: z}
	s.zones[z.Key] = cell
	s.zoneOrder = append(s.zoneOrder, cell)
	return cell
}

func (s *MemoryStore) allZones() []model.ParkingZone {
	s.mu.RLock()
	cells := make([]*zoneCell, len(s.zoneOrder))
	copy(cells, s.zoneOrder)
	s.mu.RUnlock()

	out := make([]model.ParkingZone, 0, len(cells))
	for _, c := range cells {
		out = append(out, c.snapshot())
	}
	return out
}

func (s *MemoryStore) QueryZonesInRadius(ctx context.Context, lat, lon, radiusKm float64, minSamples int) (zs []model.ParkingZone, err error) {
	defer observe("query_zones", time.Now(), &err)
	if err = s.check(ctx, "query zones"); err != nil {
		return nil, err
	}
	radius := radiusKm * 1000
	box := geo.BoundingBox(lat, lon, radius)
	out := make([]model.ParkingZone, 0)
	for _, z := range s.allZones() {
		if z.TotalCount < minSamples || !box.Contains(z.Latitude, z.Longitude) {
			continue
		}
		if geo.DistanceMeters(lat, lon, z.Latitude, z.Longitude) <= radius {
			out = append(out, z)
		}
	}
	sortBySuccess(out)
	return out, nil
}

func (s *MemoryStore) ListZones(ctx context.Context, minSamples, limit int) (zs []model.ParkingZone, err error) {
	defer observe("list_zones", time.Now(), &err)
	if err = s.check(ctx, "list zones"); err != nil {
		return nil, err
	}
	out := model.FilterReliable(s.allZones(), minSamples)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalCount > out[j].TotalCount })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) QueryRecentEvents(ctx context.Context, limit int) (evs []model.ParkingEvent, err error) {
	defer observe("recent_events", time.Now(), &err)
	if err = s.check(ctx, "recent events"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.ParkingEvent, len(s.events))
	copy(out, s.events)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) QueryEventsNear(ctx context.Context, lat, lon, radiusMeters float64) (evs []model.ParkingEvent, err error) {
	defer observe("events_near", time.Now(), &err)
	if err = s.check(ctx, "events near"); err != nil {
		return nil, err
	}
	box := geo.BoundingBox(lat, lon, radiusMeters)
	out := make([]model.ParkingEvent, 0)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if !box.Contains(e.Latitude, e.Longitude) {
			continue
		}
		if geo.DistanceMeters(lat, lon, e.Latitude, e.Longitude) <= radiusMeters {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountStats(ctx context.Context) (st model.Stats, err error) {
	defer observe("count_stats", time.Now(), &err)
	if err = s.check(ctx, "count stats"); err != nil {
		return model.Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Stats{
		Trajectories: int64(len(s.trajectories)),
		Events:       int64(len(s.events)),
		Zones:        int64(len(s.zones)),
	}, nil
}

func (s *MemoryStore) PruneTrajectories(ctx context.Context, before time.Time) (n int64, err error) {
	defer observe("prune_trajectories", time.Now(), &err)
	if err = s.check(ctx, "prune trajectories"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.trajectories[:0]
	for _, p := range s.trajectories {
		if p.Timestamp.Before(before) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	s.trajectories = kept
	return n, nil
}

// Close marks the store unavailable. Data is dropped with the process.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

// sortBySuccess orders zones by success rate, then volume, descending.
func sortBySuccess(zones []model.ParkingZone) {
	sort.SliceStable(zones, func(i, j int) bool {
		ri, rj := zones[i].SuccessRate(), zones[j].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		return zones[i].TotalCount > zones[j].TotalCount
	})
}
