// Package config defines service configuration and its loading hooks.
//
// Keys are flat and snake_case so the same name works in YAML and, upper-cased
// with the PARCA_ prefix, as an environment variable.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // timezone may name any IANA zone
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	// StoreDSN is a file path (or :memory:) for sqlite and a connection URL for postgres.
	StoreDSN string `koanf:"store_dsn"`
	// StoreTimeoutMS bounds store reads on the request path.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// ZoneKeying is grid (S2 cells) or epsilon (legacy coordinate matching).
	ZoneKeying      string  `koanf:"zone_keying"`
	ZoneCellLevel   int     `koanf:"zone_cell_level"`
	ZoneEpsilonDeg  float64 `koanf:"zone_epsilon_deg"`
	ZoneRadiusM     float64 `koanf:"zone_radius_m"`
	MinSamples      int     `koanf:"min_samples"`
	MinSamplesTime  int     `koanf:"min_samples_time"`
	NoiseAmplitude  float64 `koanf:"noise_amplitude"`
	NearbyRadiusM   float64 `koanf:"nearby_radius_m"`
	LocationRadiusM float64 `koanf:"location_radius_m"`
	LocationHourWin int     `koanf:"location_hour_window"`
	TieThreshold    int     `koanf:"tie_threshold"`

	// RefreshEvery rebuilds the model after this many recorded events.
	RefreshEvery           int `koanf:"refresh_every"`
	RefreshIntervalSeconds int `koanf:"refresh_interval_seconds"`
	RefreshTimeoutMS       int `koanf:"refresh_timeout_ms"`
	RecentEventsLimit      int `koanf:"recent_events_limit"`
	ZoneCacheLimit         int `koanf:"zone_cache_limit"`

	DefaultMaxDistanceM      float64 `koanf:"default_max_distance_m"`
	DefaultLimit             int     `koanf:"default_limit"`
	MaxLimit                 int     `koanf:"max_limit"`
	DefaultHotZoneRadiusKm   float64 `koanf:"default_hot_zone_radius_km"`
	MaxHotZones              int     `koanf:"max_hot_zones"`
	TrajectoryRetentionHrs   int     `koanf:"trajectory_retention_hours"`
	PruneIntervalSeconds     int     `koanf:"prune_interval_seconds"`
	DedupeSize               int     `koanf:"dedupe_size"`
	Timezone                 string  `koanf:"timezone"`
	IngestRateLimitPerMinute int     `koanf:"ingest_rate_limit_per_minute"`

	// OpenData* configure the public car-park feed.
	OpenDataEnabled         bool   `koanf:"opendata_enabled"`
	OpenDataURL             string `koanf:"opendata_url"`
	OpenDataTimeoutMS       int    `koanf:"opendata_timeout_ms"`
	OpenDataCacheTTLSeconds int    `koanf:"opendata_cache_ttl_seconds"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		StoreDriver:              DriverMemory,
		StoreDSN:                 "",
		StoreTimeoutMS:           2000,
		ZoneKeying:               "grid",
		ZoneCellLevel:            16,
		ZoneEpsilonDeg:           0.001,
		ZoneRadiusM:              100,
		MinSamples:               3,
		MinSamplesTime:           5,
		NoiseAmplitude:           0.05,
		NearbyRadiusM:            500,
		LocationRadiusM:          50,
		LocationHourWin:          1,
		TieThreshold:             5,
		RefreshEvery:             10,
		RefreshIntervalSeconds:   300,
		RefreshTimeoutMS:         10000,
		RecentEventsLimit:        10000,
		ZoneCacheLimit:           5000,
		DefaultMaxDistanceM:      1000,
		DefaultLimit:             10,
		MaxLimit:                 50,
		DefaultHotZoneRadiusKm:   2,
		MaxHotZones:              50,
		TrajectoryRetentionHrs:   720,
		PruneIntervalSeconds:     3600,
		DedupeSize:               100_000,
		Timezone:                 "Europe/Madrid",
		IngestRateLimitPerMinute: 120,
		OpenDataEnabled:          false,
		OpenDataURL:              "https://datos.madrid.es/egob/catalogo/208862-0-aparcamientos-publicos.json",
		OpenDataTimeoutMS:        5000,
		OpenDataCacheTTLSeconds:  300,
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != DriverMemory && c.StoreDriver != DriverSQLite && c.StoreDriver != DriverPostgres:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver != DriverMemory && c.StoreDSN == "":
		return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
	case c.ZoneKeying != "grid" && c.ZoneKeying != "epsilon":
		return fmt.Errorf("%w: zone_keying must be grid or epsilon", ErrInvalidConfig)
	case c.NoiseAmplitude < 0 || c.NoiseAmplitude > 1:
		return fmt.Errorf("%w: noise_amplitude must be in [0,1]", ErrInvalidConfig)
	case c.MinSamples <= 0 || c.MinSamplesTime <= 0:
		return fmt.Errorf("%w: min_samples and min_samples_time must be positive", ErrInvalidConfig)
	case c.RefreshEvery <= 0:
		return fmt.Errorf("%w: refresh_every must be positive", ErrInvalidConfig)
	case c.DefaultLimit <= 0 || c.MaxLimit < c.DefaultLimit:
		return fmt.Errorf("%w: need 0 < default_limit <= max_limit", ErrInvalidConfig)
	case c.OpenDataEnabled && c.OpenDataURL == "":
		return fmt.Errorf("%w: opendata_url is required when opendata is enabled", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// StoreTimeout is StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration { return ms(c.StoreTimeoutMS) }

// RefreshInterval is RefreshIntervalSeconds as a duration.
func (c *Config) RefreshInterval() time.Duration { return secs(c.RefreshIntervalSeconds) }

// RefreshTimeout is RefreshTimeoutMS as a duration.
func (c *Config) RefreshTimeout() time.Duration { return ms(c.RefreshTimeoutMS) }

// TrajectoryRetention is TrajectoryRetentionHrs as a duration.
func (c *Config) TrajectoryRetention() time.Duration {
	return time.Duration(c.TrajectoryRetentionHrs) * time.Hour
}

// PruneInterval is PruneIntervalSeconds as a duration.
func (c *Config) PruneInterval() time.Duration { return secs(c.PruneIntervalSeconds) }

// OpenDataTimeout is OpenDataTimeoutMS as a duration.
func (c *Config) OpenDataTimeout() time.Duration { return ms(c.OpenDataTimeoutMS) }

// OpenDataCacheTTL is OpenDataCacheTTLSeconds as a duration.
func (c *Config) OpenDataCacheTTL() time.Duration { return secs(c.OpenDataCacheTTLSeconds) }

func ms(v int) time.Duration   { return time.Duration(v) * time.Millisecond }
func secs(v int) time.Duration { return time.Duration(v) * time.Second }
