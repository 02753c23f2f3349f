package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() { //nolint:gochecknoinits // sqlx does not know the modernc driver name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// dialect holds what differs between SQL backends.
type dialect struct {
	name   string
	schema []string
	// zoneSeq is a column that grows with zone creation order.
	zoneSeq string
	// setup runs once after the connection is opened.
	setup func(ctx context.Context, db *sqlx.DB, dsn string) error
	// lockPoint serializes epsilon-scheme zone creation for a rounded
	// coordinate inside tx.
	lockPoint func(ctx context.Context, tx *sqlx.Tx, key int64) error
}

var sqliteDialect = dialect{
	name: DriverSQLite,
	// Zones are never deleted, so rowid follows insertion order.
	zoneSeq: "rowid",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS trajectories (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id   TEXT    NOT NULL,
			latitude  REAL    NOT NULL,
			longitude REAL    NOT NULL,
			timestamp INTEGER NOT NULL,
			speed     REAL,
			heading   REAL,
			accuracy  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trajectories_timestamp ON trajectories(timestamp)`,
		`CREATE TABLE IF NOT EXISTS parking_events (
			id              TEXT    PRIMARY KEY,
			user_id         TEXT    NOT NULL,
			latitude        REAL    NOT NULL,
			longitude       REAL    NOT NULL,
			timestamp       INTEGER NOT NULL,
			day_of_week     INTEGER NOT NULL,
			hour            INTEGER NOT NULL,
			found_parking   INTEGER NOT NULL,
			search_duration INTEGER NOT NULL DEFAULT 0,
			street_name     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_location ON parking_events(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON parking_events(timestamp)`,
		`CREATE TABLE IF NOT EXISTS parking_zones (
			zone_key      TEXT    PRIMARY KEY,
			latitude      REAL    NOT NULL,
			longitude     REAL    NOT NULL,
			radius        REAL    NOT NULL DEFAULT 100,
			success_count INTEGER NOT NULL DEFAULT 0,
			total_count   INTEGER NOT NULL DEFAULT 0,
			last_updated  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_zones_location ON parking_zones(latitude, longitude)`,
	},
	setup: func(ctx context.Context, db *sqlx.DB, dsn string) error {
		// One connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		pragmas := []string{"PRAGMA busy_timeout=5000"}
		if !strings.Contains(dsn, ":memory:") {
			pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
		}
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				return err
			}
		}
		return nil
	},
	lockPoint: func(context.Context, *sqlx.Tx, int64) error { return nil },
}

var postgresDialect = dialect{
	name:    DriverPostgres,
	zoneSeq: "seq",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS trajectories (
			id        BIGSERIAL PRIMARY KEY,
			user_id   TEXT             NOT NULL,
			latitude  DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			timestamp BIGINT           NOT NULL,
			speed     DOUBLE PRECISION,
			heading   DOUBLE PRECISION,
			accuracy  DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trajectories_timestamp ON trajectories(timestamp)`,
		`CREATE TABLE IF NOT EXISTS parking_events (
			id              TEXT             PRIMARY KEY,
			user_id         TEXT             NOT NULL,
			latitude        DOUBLE PRECISION NOT NULL,
			longitude       DOUBLE PRECISION NOT NULL,
			timestamp       BIGINT           NOT NULL,
			day_of_week     SMALLINT         NOT NULL,
			hour            SMALLINT         NOT NULL,
			found_parking   SMALLINT         NOT NULL,
			search_duration INTEGER          NOT NULL DEFAULT 0,
			street_name     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_location ON parking_events(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON parking_events(timestamp)`,
		`CREATE TABLE IF NOT EXISTS parking_zones (
			zone_key      TEXT             PRIMARY KEY,
			latitude      DOUBLE PRECISION NOT NULL,
			longitude     DOUBLE PRECISION NOT NULL,
			radius        DOUBLE PRECISION NOT NULL DEFAULT 100,
			success_count INTEGER          NOT NULL DEFAULT 0,
			total_count   INTEGER          NOT NULL DEFAULT 0,
			last_updated  BIGINT           NOT NULL,
			seq           BIGSERIAL
		)`,
		`ALTER TABLE parking_zones ADD COLUMN IF NOT EXISTS seq BIGSERIAL`,
		`CREATE INDEX IF NOT EXISTS idx_zones_location ON parking_zones(latitude, longitude)`,
	},
	setup: func(ctx context.Context, db *sqlx.DB, _ string) error {
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(4)
		return db.PingContext(ctx)
	},
	lockPoint: func(ctx context.Context, tx *sqlx.Tx, key int64) error {
		_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
		return err
	},
}
