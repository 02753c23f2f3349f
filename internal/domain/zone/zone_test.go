package zone_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/internal/domain/zone"
	"github.com/okian/buscaparca/pkg/geo"
)

func TestIdentityValidate(t *testing.T) {
	Convey("Given zone identities", t, func() {
		So(zone.Default().Validate(), ShouldBeNil)

		id := zone.Default()
		id.Level = 31
		So(errors.Is(id.Validate(), zone.ErrInvalidIdentity), ShouldBeTrue)

		id = zone.Default()
		id.Scheme = zone.SchemeEpsilon
		id.Epsilon = 0
		So(errors.Is(id.Validate(), zone.ErrInvalidIdentity), ShouldBeTrue)

		id = zone.Default()
		id.Scheme = "hex"
		So(errors.Is(id.Validate(), zone.ErrInvalidIdentity), ShouldBeTrue)

		id = zone.Default()
		id.Radius = 0
		So(errors.Is(id.Validate(), zone.ErrInvalidIdentity), ShouldBeTrue)
	})
}

func TestCellKey(t *testing.T) {
	Convey("Given the grid scheme", t, func() {
		id := zone.Default()

		Convey("Keys are deterministic", func() {
			k1, lat1, lon1 := id.CellKey(40.4168, -3.7038)
			k2, lat2, lon2 := id.CellKey(40.4168, -3.7038)
			So(k1, ShouldEqual, k2)
			So(lat1, ShouldEqual, lat2)
			So(lon1, ShouldEqual, lon2)
		})

		Convey("The cell center is close to the point", func() {
			_, lat, lon := id.CellKey(40.4168, -3.7038)
			So(geo.DistanceMeters(lat, lon, 40.4168, -3.7038), ShouldBeLessThan, 200)
		})

		Convey("Every point inside a cell maps back to the same key", func() {
			key, lat, lon := id.CellKey(40.4168, -3.7038)
			again, _, _ := id.CellKey(lat, lon)
			So(again, ShouldEqual, key)
		})

		Convey("Points a kilometre apart land in different cells", func() {
			a, _, _ := id.CellKey(40.4168, -3.7038)
			b, _, _ := id.CellKey(40.4258, -3.7038)
			So(a, ShouldNotEqual, b)
		})

		Convey("Coarser levels produce larger cells", func() {
			coarse := id
			coarse.Level = 10
			a, _, _ := coarse.CellKey(40.4168, -3.7038)
			b, _, _ := coarse.CellKey(40.4178, -3.7038)
			So(a, ShouldEqual, b)
		})
	})
}

func TestEpsilonMatching(t *testing.T) {
	Convey("Given the epsilon scheme", t, func() {
		id := zone.Default()
		id.Scheme = zone.SchemeEpsilon
		z := id.New("z1", 40.4168, -3.7038, time.Now())

		So(z.Radius, ShouldEqual, model.DefaultZoneRadius)
		So(id.Matches(z.Latitude, z.Longitude, 40.4170, -3.7040), ShouldBeTrue)
		So(id.Matches(z.Latitude, z.Longitude, 40.4177, -3.7038), ShouldBeTrue)
		So(id.Matches(z.Latitude, z.Longitude, 40.4180, -3.7038), ShouldBeFalse)
		So(id.Matches(z.Latitude, z.Longitude, 40.4168, -3.7050), ShouldBeFalse)

		Convey("Lock keys agree for nearby points and are non-negative", func() {
			So(id.LockKey(40.41681, -3.70381), ShouldEqual, id.LockKey(40.41682, -3.70382))
			So(id.LockKey(40.4168, -3.7038), ShouldBeGreaterThanOrEqualTo, 0)
		})
	})
}
