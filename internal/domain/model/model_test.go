package model_test

import (
	"errors"
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/buscaparca/internal/domain/model"
)

func ptr[T any](v T) *T { return &v }

func TestTrajectoryPointValidate(t *testing.T) {
	Convey("Given trajectory samples", t, func() {
		ok := model.TrajectoryPoint{
			UserID:    "user-1",
			Latitude:  40.4168,
			Longitude: -3.7038,
			Timestamp: time.Now(),
			Speed:     ptr(8.3),
		}

		Convey("A complete sample is valid", func() {
			So(ok.Validate(), ShouldBeNil)
		})

		Convey("Zero coordinates are accepted", func() {
			p := ok
			p.Latitude, p.Longitude = 0, 0
			So(p.Validate(), ShouldBeNil)
		})

		Convey("Missing user or timestamp is a validation error", func() {
			p := ok
			p.UserID = ""
			So(errors.Is(p.Validate(), model.ErrValidation), ShouldBeTrue)

			p = ok
			p.Timestamp = time.Time{}
			So(errors.Is(p.Validate(), model.ErrValidation), ShouldBeTrue)
		})

		Convey("Out of range or NaN coordinates are rejected", func() {
			p := ok
			p.Latitude = 91
			So(errors.Is(p.Validate(), model.ErrValidation), ShouldBeTrue)

			p = ok
			p.Longitude = math.NaN()
			So(errors.Is(p.Validate(), model.ErrValidation), ShouldBeTrue)
		})

		Convey("Optional fields are checked only when present", func() {
			p := ok
			p.Heading = ptr(360.0)
			So(errors.Is(p.Validate(), model.ErrValidation), ShouldBeTrue)

			p.Heading = nil
			p.Accuracy = ptr(-1.0)
			So(errors.Is(p.Validate(), model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestParkingEventStamp(t *testing.T) {
	Convey("Given a parking event", t, func() {
		madrid, err := time.LoadLocation("Europe/Madrid")
		So(err, ShouldBeNil)

		Convey("Stamp derives day and hour in the service zone", func() {
			// 2024-01-06 23:30 UTC is Sunday 00:30 in Madrid
			e := model.ParkingEvent{Timestamp: time.Date(2024, 1, 6, 23, 30, 0, 0, time.UTC)}
			e.Stamp(time.Now(), madrid)
			So(e.DayOfWeek, ShouldEqual, int(time.Sunday))
			So(e.Hour, ShouldEqual, 0)
		})

		Convey("Stamp fills a missing timestamp from now", func() {
			now := time.Date(2024, 1, 3, 14, 0, 0, 0, time.UTC)
			e := model.ParkingEvent{}
			e.Stamp(now, nil)
			So(e.Timestamp, ShouldEqual, now)
			So(e.DayOfWeek, ShouldEqual, int(time.Wednesday))
			So(e.Hour, ShouldEqual, 14)
		})

		Convey("Validate rejects missing user and negative durations", func() {
			e := model.ParkingEvent{UserID: "u", Latitude: 40, Longitude: -3, Timestamp: time.Now()}
			So(e.Validate(), ShouldBeNil)

			e.SearchDuration = -5
			So(errors.Is(e.Validate(), model.ErrValidation), ShouldBeTrue)

			e.SearchDuration = 0
			e.UserID = ""
			So(errors.Is(e.Validate(), model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestParkingZone(t *testing.T) {
	Convey("Given parking zones", t, func() {
		Convey("Success rate is success over total", func() {
			z := model.ParkingZone{SuccessCount: 70, TotalCount: 100}
			So(z.SuccessRate(), ShouldAlmostEqual, 0.7)
		})

		Convey("An empty zone has zero success rate", func() {
			So(model.ParkingZone{}.SuccessRate(), ShouldEqual, 0)
		})

		Convey("Reliability needs the minimum sample count", func() {
			So(model.ParkingZone{TotalCount: 2}.Reliable(3), ShouldBeFalse)
			So(model.ParkingZone{TotalCount: 3}.Reliable(3), ShouldBeTrue)
		})

		Convey("Record keeps success within total", func() {
			var z model.ParkingZone
			at := time.Now()
			z.Record(true, at)
			z.Record(false, at.Add(time.Minute))
			z.Record(true, at.Add(-time.Hour))
			So(z.TotalCount, ShouldEqual, 3)
			So(z.SuccessCount, ShouldEqual, 2)
			So(z.LastUpdated, ShouldEqual, at.Add(time.Minute))
		})

		Convey("FilterReliable drops thin zones", func() {
			zones := []model.ParkingZone{{Key: "a", TotalCount: 1}, {Key: "b", TotalCount: 5}}
			out := model.FilterReliable(zones, 3)
			So(out, ShouldHaveLength, 1)
			So(out[0].Key, ShouldEqual, "b")
		})
	})
}
