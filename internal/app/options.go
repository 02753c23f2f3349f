package service

import (
	"time"

	"github.com/okian/buscaparca/internal/domain/dedupe"
	"github.com/okian/buscaparca/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDeduper replaces the report-ID cache.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDedupeSize sets the size of the default report-ID cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithPublicParking enables the open-data source. A nil source disables it.
func WithPublicParking(src PublicParkingSource) Option {
	return func(s *Service) {
		s.openData = src
	}
}

// WithRefreshEvery requests a model refresh after every n recorded events.
func WithRefreshEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshEvery = int64(n)
		}
	}
}

// WithRefreshInterval sets the periodic refresh interval. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithRefreshTimeout bounds a single rebuild.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// WithStoreTimeout bounds store reads on the request path.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithSnapshotLimits caps how many recent events and zones a refresh loads.
func WithSnapshotLimits(events, zones int) Option {
	return func(s *Service) {
		if events > 0 {
			s.recentEventsLimit = events
		}
		if zones > 0 {
			s.zoneCacheLimit = zones
		}
	}
}

// WithRetention prunes trajectory samples older than retention every
// interval. A zero interval disables pruning.
func WithRetention(retention, interval time.Duration) Option {
	return func(s *Service) {
		if retention > 0 {
			s.retention = retention
		}
		if interval >= 0 {
			s.pruneInterval = interval
		}
	}
}

// WithMaxHotZones caps the hot-zone answer.
func WithMaxHotZones(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxHotZones = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
