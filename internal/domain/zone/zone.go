// Package zone decides which parking zone a reported coordinate belongs to.
//
// Two schemes exist. The grid scheme keys every point by the S2 cell that
// contains it, so the resulting zones do not depend on the order in which
// reports arrive. The epsilon scheme reproduces the legacy behaviour: a
// point joins the first existing zone whose center lies within epsilon
// degrees on both axes, otherwise it founds a new zone at its own position.
package zone

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/golang/geo/s2"

	"github.com/okian/buscaparca/internal/domain/model"
)

// Scheme names a zone identity scheme.
type Scheme string

const (
	SchemeGrid    Scheme = "grid"
	SchemeEpsilon Scheme = "epsilon"
)

const (
	DefaultLevel   = 16    // ~150 m cells
	DefaultEpsilon = 0.001 // degrees
)

// ErrInvalidIdentity is returned by Validate.
var ErrInvalidIdentity = errors.New("invalid zone identity")

// Identity configures how coordinates map to zones.
type Identity struct {
	Scheme  Scheme
	Level   int
	Epsilon float64
	Radius  float64
}

// Default returns the grid scheme at DefaultLevel.
func Default() Identity {
	return Identity{
		Scheme:  SchemeGrid,
		Level:   DefaultLevel,
		Epsilon: DefaultEpsilon,
		Radius:  model.DefaultZoneRadius,
	}
}

// Validate checks the identity parameters.
func (id Identity) Validate() error {
	switch id.Scheme {
	case SchemeGrid:
		if id.Level < 0 || id.Level > s2.MaxLevel {
			return fmt.Errorf("%w: level %d outside [0,%d]", ErrInvalidIdentity, id.Level, s2.MaxLevel)
		}
	case SchemeEpsilon:
		if id.Epsilon <= 0 || math.IsNaN(id.Epsilon) {
			return fmt.Errorf("%w: epsilon must be positive", ErrInvalidIdentity)
		}
	default:
		return fmt.Errorf("%w: unknown scheme %q", ErrInvalidIdentity, id.Scheme)
	}
	if id.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidIdentity)
	}
	return nil
}

// Grid reports whether the identity uses deterministic cell keys.
func (id Identity) Grid() bool { return id.Scheme == SchemeGrid }

// CellKey returns the S2 cell token containing the point and the center of
// that cell. Only meaningful for the grid scheme.
func (id Identity) CellKey(lat, lon float64) (key string, centerLat, centerLon float64) {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(id.Level)
	center := cell.LatLng()
	return cell.ToToken(), center.Lat.Degrees(), center.Lng.Degrees()
}

// Matches reports whether a point falls inside the zone centered at
// (zoneLat, zoneLon) under the epsilon scheme.
func (id Identity) Matches(zoneLat, zoneLon, lat, lon float64) bool {
	return math.Abs(zoneLat-lat) < id.Epsilon && math.Abs(zoneLon-lon) < id.Epsilon
}

// LockKey hashes the point rounded to the identity resolution. Points that
// would share a zone almost always share a lock key.
func (id Identity) LockKey(lat, lon float64) int64 {
	var raw string
	if id.Grid() {
		raw, _, _ = id.CellKey(lat, lon)
	} else {
		raw = fmt.Sprintf("%d:%d", int64(math.Round(lat/id.Epsilon)), int64(math.Round(lon/id.Epsilon)))
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(raw))
	return int64(h.Sum64() >> 1)
}

// New returns an empty zone centered at (lat, lon).
func (id Identity) New(key string, lat, lon float64, at time.Time) model.ParkingZone {
	return model.ParkingZone{
		Key:         key,
		Latitude:    lat,
		Longitude:   lon,
		Radius:      id.Radius,
		LastUpdated: at,
	}
}
