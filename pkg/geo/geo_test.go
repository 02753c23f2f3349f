package geo_test

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/buscaparca/pkg/geo"
)

func TestDistanceMeters(t *testing.T) {
	Convey("Given great-circle distances", t, func() {
		Convey("Identical points are exactly zero apart", func() {
			So(geo.DistanceMeters(40.4168, -3.7038, 40.4168, -3.7038), ShouldEqual, 0)
		})

		Convey("Distance is symmetric", func() {
			a := geo.DistanceMeters(40.4168, -3.7038, 40.42, -3.70)
			b := geo.DistanceMeters(40.42, -3.70, 40.4168, -3.7038)
			So(a, ShouldEqual, b)
		})

		Convey("Madrid to Barcelona is roughly 505 km", func() {
			d := geo.DistanceMeters(40.4168, -3.7038, 41.3874, 2.1686)
			So(d, ShouldBeBetweenOrEqual, 500000, 510000)
		})

		Convey("Short hops are measured in meters", func() {
			// 0.0009 degrees of latitude is about 100 m
			d := geo.DistanceMeters(40.4168, -3.7038, 40.4177, -3.7038)
			So(d, ShouldAlmostEqual, 100, 1)
		})

		Convey("Antipodal points stay finite", func() {
			d := geo.DistanceMeters(0, 0, 0, 180)
			So(math.IsNaN(d), ShouldBeFalse)
			So(d, ShouldAlmostEqual, math.Pi*geo.EarthRadiusMeters, 1)
		})
	})
}

func TestBearingDegrees(t *testing.T) {
	Convey("Given bearings between points", t, func() {
		So(geo.BearingDegrees(40, -3, 41, -3), ShouldAlmostEqual, 0, 1e-9)
		So(geo.BearingDegrees(0, 0, 0, 1), ShouldAlmostEqual, 90, 1e-9)
		So(geo.BearingDegrees(41, -3, 40, -3), ShouldAlmostEqual, 180, 1e-9)
		So(geo.BearingDegrees(0, 1, 0, 0), ShouldAlmostEqual, 270, 1e-9)

		b := geo.BearingDegrees(40.4168, -3.7038, 41.3874, 2.1686)
		So(b, ShouldBeGreaterThanOrEqualTo, 0)
		So(b, ShouldBeLessThan, 360)
	})
}

func TestBoundingBox(t *testing.T) {
	Convey("Given a 500 m box around Madrid", t, func() {
		box := geo.BoundingBox(40.4168, -3.7038, 500)

		Convey("Points on the radius in every direction are inside", func() {
			for _, bearing := range []float64{0, 90, 180, 270} {
				rad := bearing * math.Pi / 180
				lat := 40.4168 + 500/111000.0*math.Cos(rad)
				lon := -3.7038 + 500/(111000.0*math.Cos(40.4168*math.Pi/180))*math.Sin(rad)
				So(box.Contains(lat, lon), ShouldBeTrue)
			}
		})

		Convey("Points far away are outside", func() {
			So(box.Contains(40.5, -3.7038), ShouldBeFalse)
			So(box.Contains(40.4168, -3.6), ShouldBeFalse)
		})
	})
}

func TestValidCoordinate(t *testing.T) {
	Convey("Coordinates are range checked", t, func() {
		So(geo.ValidCoordinate(0, 0), ShouldBeTrue)
		So(geo.ValidCoordinate(-90, 180), ShouldBeTrue)
		So(geo.ValidCoordinate(90.1, 0), ShouldBeFalse)
		So(geo.ValidCoordinate(0, -180.5), ShouldBeFalse)
		So(geo.ValidCoordinate(math.NaN(), 0), ShouldBeFalse)
		So(geo.ValidCoordinate(0, math.Inf(1)), ShouldBeFalse)
	})
}

func TestFormatting(t *testing.T) {
	Convey("Given distance formatting", t, func() {
		So(geo.FormatDistance(0), ShouldEqual, "0 m")
		So(geo.FormatDistance(999), ShouldEqual, "999 m")
		So(geo.FormatDistance(999.9), ShouldEqual, "999 m")
		So(geo.FormatDistance(1000), ShouldEqual, "1.0 km")
		So(geo.FormatDistance(1500), ShouldEqual, "1.5 km")
	})

	Convey("Given duration formatting", t, func() {
		So(geo.FormatDuration(0), ShouldEqual, "< 1 min")
		So(geo.FormatDuration(30), ShouldEqual, "< 1 min")
		So(geo.FormatDuration(59), ShouldEqual, "< 1 min")
		So(geo.FormatDuration(60), ShouldEqual, "1 min")
		So(geo.FormatDuration(300), ShouldEqual, "5 min")
		So(geo.FormatDuration(3599), ShouldEqual, "59 min")
		So(geo.FormatDuration(3600), ShouldEqual, "1 h 0 min")
		So(geo.FormatDuration(3900), ShouldEqual, "1 h 5 min")
	})
}
