package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/geo"
)

// SQLStore persists to SQLite or PostgreSQL through sqlx.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	opts    options
}

var _ Store = (*SQLStore)(nil)

type trajectoryRow struct {
	UserID    string          `db:"user_id"`
	Latitude  float64         `db:"latitude"`
	Longitude float64         `db:"longitude"`
	Timestamp int64           `db:"timestamp"`
	Speed     sql.NullFloat64 `db:"speed"`
	Heading   sql.NullFloat64 `db:"heading"`
	Accuracy  sql.NullFloat64 `db:"accuracy"`
}

type eventRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	Latitude       float64        `db:"latitude"`
	Longitude      float64        `db:"longitude"`
	Timestamp      int64          `db:"timestamp"`
	DayOfWeek      int            `db:"day_of_week"`
	Hour           int            `db:"hour"`
	FoundParking   int            `db:"found_parking"`
	SearchDuration int            `db:"search_duration"`
	StreetName     sql.NullString `db:"street_name"`
}

type zoneRow struct {
	Key          string  `db:"zone_key"`
	Latitude     float64 `db:"latitude"`
	Longitude    float64 `db:"longitude"`
	Radius       float64 `db:"radius"`
	SuccessCount int     `db:"success_count"`
	TotalCount   int     `db:"total_count"`
	LastUpdated  int64   `db:"last_updated"`
}

const (
	eventColumns = `id, user_id, latitude, longitude, timestamp, day_of_week, hour, found_parking, search_duration, street_name`
	zoneColumns  = `zone_key, latitude, longitude, radius, success_count, total_count, last_updated`
)

// NewSQLStore opens the database, applies the schema and returns the store.
func NewSQLStore(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var d dialect
	switch driver {
	case DriverSQLite:
		d = sqliteDialect
	case DriverPostgres:
		d = postgresDialect
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", driver, ErrStoreUnavailable, err)
	}
	if err := d.setup(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure %s: %w: %w", driver, ErrStoreUnavailable, err)
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w: %w", ErrStoreUnavailable, err)
		}
	}
	return &SQLStore{db: db, dialect: d, opts: o}, nil
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) InsertTrajectoryPoint(ctx context.Context, p model.TrajectoryPoint) (err error) {
	defer observe("insert_trajectory", time.Now(), &err)
	if err = p.Validate(); err != nil {
		return err
	}
	row := trajectoryRow{
		UserID:    p.UserID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timestamp: p.Timestamp.UnixMilli(),
		Speed:     nullFloat(p.Speed),
		Heading:   nullFloat(p.Heading),
		Accuracy:  nullFloat(p.Accuracy),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO trajectories (user_id, latitude, longitude, timestamp, speed, heading, accuracy)
		VALUES (:user_id, :latitude, :longitude, :timestamp, :speed, :heading, :accuracy)`, row)
	return unavailable("insert trajectory", err)
}

func (s *SQLStore) InsertParkingEvent(ctx context.Context, e model.ParkingEvent) (z model.ParkingZone, err error) {
	defer observe("insert_event", time.Now(), &err)
	if err = e.Validate(); err != nil {
		return model.ParkingZone{}, err
	}
	if e.ID == "" {
		e.ID = s.opts.newID()
	}
	row := eventRow{
		ID:             e.ID,
		UserID:         e.UserID,
		Latitude:       e.Latitude,
		Longitude:      e.Longitude,
		Timestamp:      e.Timestamp.UnixMilli(),
		DayOfWeek:      e.DayOfWeek,
		Hour:           e.Hour,
		FoundParking:   boolToInt(e.FoundParking),
		SearchDuration: e.SearchDuration,
	}
	if e.StreetName != nil {
		row.StreetName = sql.NullString{String: *e.StreetName, Valid: true}
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO parking_events (`+eventColumns+`)
			VALUES (:id, :user_id, :latitude, :longitude, :timestamp, :day_of_week, :hour, :found_parking, :search_duration, :street_name)`, row); err != nil {
			return err
		}
		var uerr error
		z, uerr = s.upsertZone(ctx, tx, e.Latitude, e.Longitude, e.FoundParking, e.Timestamp)
		return uerr
	})
	if err != nil {
		return model.ParkingZone{}, unavailable("insert event", err)
	}
	return z, nil
}

func (s *SQLStore) UpsertZoneAggregate(ctx context.Context, lat, lon float64, found bool, at time.Time) (z model.ParkingZone, err error) {
	defer observe("upsert_zone", time.Now(), &err)
	if !geo.ValidCoordinate(lat, lon) {
		return model.ParkingZone{}, fmt.Errorf("%w: coordinate (%v, %v)", model.ErrValidation, lat, lon)
	}
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		var uerr error
		z, uerr = s.upsertZone(ctx, tx, lat, lon, found, at)
		return uerr
	})
	if err != nil {
		return model.ParkingZone{}, unavailable("upsert zone", err)
	}
	return z, nil
}

// upsertZone records one outcome for the zone owning (lat, lon) inside tx.
func (s *SQLStore) upsertZone(ctx context.Context, tx *sqlx.Tx, lat, lon float64, found bool, at time.Time) (model.ParkingZone, error) {
	id := s.opts.identity
	success := boolToInt(found)
	atMs := at.UnixMilli()

	var key string
	if id.Grid() {
		var cLat, cLon float64
		key, cLat, cLon = id.CellKey(lat, lon)
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO parking_zones (`+zoneColumns+`)
			VALUES (?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT (zone_key) DO UPDATE SET
				success_count = parking_zones.success_count + excluded.success_count,
				total_count   = parking_zones.total_count + 1,
				last_updated  = CASE WHEN excluded.last_updated > parking_zones.last_updated
				                     THEN excluded.last_updated ELSE parking_zones.last_updated END`),
			key, cLat, cLon, id.Radius, success, atMs); err != nil {
			return model.ParkingZone{}, err
		}
	} else {
		if err := s.dialect.lockPoint(ctx, tx, id.LockKey(lat, lon)); err != nil {
			return model.ParkingZone{}, err
		}
		err := tx.GetContext(ctx, &key, tx.Rebind(`
			SELECT zone_key FROM parking_zones
			WHERE ABS(latitude - ?) < ? AND ABS(longitude - ?) < ?
			ORDER BY `+s.dialect.zoneSeq+` LIMIT 1`), lat, id.Epsilon, lon, id.Epsilon)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			key = s.opts.newID()
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO parking_zones (`+zoneColumns+`) VALUES (?, ?, ?, ?, ?, 1, ?)`),
				key, lat, lon, id.Radius, success, atMs); err != nil {
				return model.ParkingZone{}, err
			}
		case err != nil:
			return model.ParkingZone{}, err
		default:
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE parking_zones
				SET success_count = success_count + ?,
				    total_count   = total_count + 1,
				    last_updated  = CASE WHEN ? > last_updated THEN ? ELSE last_updated END
				WHERE zone_key = ?`), success, atMs, atMs, key); err != nil {
				return model.ParkingZone{}, err
			}
		}
	}

	var row zoneRow
	if err := tx.GetContext(ctx, &row, tx.Rebind(`SELECT `+zoneColumns+` FROM parking_zones WHERE zone_key = ?`), key); err != nil {
		return model.ParkingZone{}, err
	}
	return row.toModel(), nil
}

func (s *SQLStore) QueryZonesInRadius(ctx context.Context, lat, lon, radiusKm float64, minSamples int) (zs []model.ParkingZone, err error) {
	defer observe("query_zones", time.Now(), &err)
	radius := radiusKm * 1000
	box := geo.BoundingBox(lat, lon, radius)

	var rows []zoneRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+zoneColumns+` FROM parking_zones
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ? AND total_count >= ?`),
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, minSamples); err != nil {
		return nil, unavailable("query zones", err)
	}

	out := make([]model.ParkingZone, 0, len(rows))
	for _, r := range rows {
		if geo.DistanceMeters(lat, lon, r.Latitude, r.Longitude) <= radius {
			out = append(out, r.toModel())
		}
	}
	sortBySuccess(out)
	return out, nil
}

func (s *SQLStore) ListZones(ctx context.Context, minSamples, limit int) (zs []model.ParkingZone, err error) {
	defer observe("list_zones", time.Now(), &err)
	var rows []zoneRow
	query := `SELECT ` + zoneColumns + ` FROM parking_zones WHERE total_count >= ? ORDER BY total_count DESC, zone_key`
	args := []interface{}{minSamples}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, unavailable("list zones", err)
	}
	out := make([]model.ParkingZone, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) QueryRecentEvents(ctx context.Context, limit int) (evs []model.ParkingEvent, err error) {
	defer observe("recent_events", time.Now(), &err)
	query := `SELECT ` + eventColumns + ` FROM parking_events ORDER BY timestamp DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []eventRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, unavailable("recent events", err)
	}
	return toEvents(rows, nil), nil
}

func (s *SQLStore) QueryEventsNear(ctx context.Context, lat, lon, radiusMeters float64) (evs []model.ParkingEvent, err error) {
	defer observe("events_near", time.Now(), &err)
	box := geo.BoundingBox(lat, lon, radiusMeters)
	var rows []eventRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+eventColumns+` FROM parking_events
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`),
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon); err != nil {
		return nil, unavailable("events near", err)
	}
	return toEvents(rows, func(r eventRow) bool {
		return geo.DistanceMeters(lat, lon, r.Latitude, r.Longitude) <= radiusMeters
	}), nil
}

func (s *SQLStore) CountStats(ctx context.Context) (st model.Stats, err error) {
	defer observe("count_stats", time.Now(), &err)
	counts := []struct {
		table string
		dest  *int64
	}{
		{"trajectories", &st.Trajectories},
		{"parking_events", &st.Events},
		{"parking_zones", &st.Zones},
	}
	for _, c := range counts {
		if err = s.db.GetContext(ctx, c.dest, `SELECT COUNT(*) FROM `+c.table); err != nil {
			return model.Stats{}, unavailable("count "+c.table, err)
		}
	}
	return st, nil
}

func (s *SQLStore) PruneTrajectories(ctx context.Context, before time.Time) (n int64, err error) {
	defer observe("prune_trajectories", time.Now(), &err)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM trajectories WHERE timestamp < ?`), before.UnixMilli())
	if err != nil {
		return 0, unavailable("prune trajectories", err)
	}
	n, err = res.RowsAffected()
	return n, unavailable("prune trajectories", err)
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (r zoneRow) toModel() model.ParkingZone {
	return model.ParkingZone{
		Key:          r.Key,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Radius:       r.Radius,
		SuccessCount: r.SuccessCount,
		TotalCount:   r.TotalCount,
		LastUpdated:  time.UnixMilli(r.LastUpdated),
	}
}

func toEvents(rows []eventRow, keep func(eventRow) bool) []model.ParkingEvent {
	out := make([]model.ParkingEvent, 0, len(rows))
	for _, r := range rows {
		if keep != nil && !keep(r) {
			continue
		}
		e := model.ParkingEvent{
			ID:             r.ID,
			UserID:         r.UserID,
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
			Timestamp:      time.UnixMilli(r.Timestamp),
			DayOfWeek:      r.DayOfWeek,
			Hour:           r.Hour,
			FoundParking:   r.FoundParking != 0,
			SearchDuration: r.SearchDuration,
		}
		if r.StreetName.Valid {
			name := r.StreetName.String
			e.StreetName = &name
		}
		out = append(out, e)
	}
	return out
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
