// Package geo holds the small amount of spherical geometry the parking
// service needs: great-circle distance, bearing, bounding boxes and the
// human-readable formatting used in API responses.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for every distance.
const EarthRadiusMeters = 6371000.0

const metersPerDegree = 111000.0

// DistanceMeters returns the great-circle distance between two points.
// Identical points yield exactly 0 and the result is symmetric.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// BearingDegrees returns the initial bearing from the first point to the
// second, normalized to [0, 360) with 0 meaning north.
func BearingDegrees(fromLat, fromLon, toLat, toLon float64) float64 {
	p1 := s2.LatLngFromDegrees(fromLat, fromLon)
	p2 := s2.LatLngFromDegrees(toLat, toLon)

	lat1 := p1.Lat.Radians()
	lat2 := p2.Lat.Radians()
	dLon := p2.Lng.Radians() - p1.Lng.Radians()

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Box is a latitude/longitude rectangle used to pre-filter radius queries.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the box (inclusive).
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBox returns a box that contains every point within radiusMeters of
// (lat, lon). The box is an over-approximation; callers still check the
// exact distance.
func BoundingBox(lat, lon, radiusMeters float64) Box {
	latDelta := radiusMeters / metersPerDegree
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	lonDelta := math.Min(radiusMeters/(metersPerDegree*cos), 180)
	// pad slightly so points exactly on the radius survive rounding
	latDelta *= 1.01
	lonDelta *= 1.01
	return Box{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLon: lon - lonDelta,
		MaxLon: lon + lonDelta,
	}
}

// ValidCoordinate reports whether lat/lon are finite and inside WGS84 range.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// FormatDistance renders meters as "<N> m" below one kilometre and
// "<N.N> km" otherwise.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(meters))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders a search duration in whole minutes.
func FormatDuration(seconds int) string {
	minutes := seconds / 60
	switch {
	case minutes < 1:
		return "< 1 min"
	case minutes < 60:
		return fmt.Sprintf("%d min", minutes)
	default:
		return fmt.Sprintf("%d h %d min", minutes/60, minutes%60)
	}
}
