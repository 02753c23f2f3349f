package opendata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/buscaparca/internal/adapters/opendata"
	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/logger"
)

const sample = `{
  "@context": {},
  "@graph": [
    {
      "title": "Aparcamiento Plaza Mayor",
      "location": {"latitude": 40.4155, "longitude": -3.7074},
      "address": {"street-address": "CALLE MAYOR 1", "district": {"title": "Centro"}, "area": {"title": "Sol"}},
      "capacity": 400, "free-places": "100", "occupied-places": 300
    },
    {
      "title": "Aparcamiento Sol",
      "location": {"latitude": 40.4169, "longitude": -3.7035},
      "capacity": "200", "free-places": 180, "occupied-places": null
    },
    {
      "title": "Sin capacidad",
      "location": {"latitude": 40.4170, "longitude": -3.7040}
    },
    {"title": "Sin posicion", "capacity": 10},
    {
      "title": "Barcelona",
      "location": {"latitude": 41.3851, "longitude": 2.1734},
      "capacity": 100, "free-places": 100
    }
  ]
}`

func feedServer(status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		code := int(status.Load())
		if code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sample))
	}))
}

func TestClient(t *testing.T) {
	_ = logger.Init()

	Convey("Given a reachable feed", t, func() {
		var status, hits atomic.Int32
		status.Store(http.StatusOK)
		srv := feedServer(&status, &hits)
		Reset(srv.Close)

		now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		c := opendata.New(srv.URL, opendata.WithClock(clock), opendata.WithCacheTTL(time.Minute), opendata.WithTimeout(time.Second))
		ctx := context.Background()

		Convey("Facilities parse counts in any encoding and skip entries without a position", func() {
			all, err := c.Facilities(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 4)
			So(all[0].Name, ShouldEqual, "Aparcamiento Plaza Mayor")
			So(all[0].Address, ShouldEqual, "CALLE MAYOR 1")
			So(all[0].District, ShouldEqual, "Centro")
			So(all[0].FreePlaces, ShouldEqual, 100)
			So(all[0].SuccessRate, ShouldAlmostEqual, 0.25)
			So(all[1].Capacity, ShouldEqual, 200)
			So(all[2].Capacity, ShouldEqual, 0)
		})

		Convey("Results are cached until the TTL expires", func() {
			_, _ = c.Facilities(ctx)
			_, _ = c.Facilities(ctx)
			So(hits.Load(), ShouldEqual, 1)

			now = now.Add(2 * time.Minute)
			_, _ = c.Facilities(ctx)
			So(hits.Load(), ShouldEqual, 2)
		})

		Convey("Nearby ranks availability over distance and drops far car parks", func() {
			near, err := c.Nearby(ctx, 40.4168, -3.7038, 1000)
			So(err, ShouldBeNil)
			So(len(near), ShouldEqual, 3)
			So(near[0].Name, ShouldEqual, "Aparcamiento Sol")
			So(near[0].Distance, ShouldBeLessThan, 50)
			for _, p := range near {
				So(p.Name, ShouldNotEqual, "Barcelona")
			}
		})

		Convey("Hot zones skip car parks without capacity", func() {
			zones, err := c.HotZones(ctx)
			So(err, ShouldBeNil)
			So(len(zones), ShouldEqual, 3)
			for _, z := range zones {
				So(z.Source, ShouldEqual, model.SourceOpenData)
				So(z.Radius, ShouldEqual, model.DefaultZoneRadius)
			}
		})

		Convey("A failing feed falls back to the stale cache", func() {
			_, err := c.Facilities(ctx)
			So(err, ShouldBeNil)
			status.Store(http.StatusBadGateway)
			now = now.Add(time.Hour)

			all, err := c.Facilities(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 4)
		})
	})

	Convey("Given a feed that always fails", t, func() {
		var status, hits atomic.Int32
		status.Store(http.StatusInternalServerError)
		srv := feedServer(&status, &hits)
		Reset(srv.Close)
		c := opendata.New(srv.URL)
		ctx := context.Background()

		Convey("Errors surface as unavailable and the breaker stops calling the feed", func() {
			for i := 0; i < 5; i++ {
				_, err := c.Facilities(ctx)
				So(errors.Is(err, opendata.ErrUnavailable), ShouldBeTrue)
			}
			So(hits.Load(), ShouldEqual, 3)
		})
	})

	Convey("Given a malformed document", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"@graph": [`))
		}))
		Reset(srv.Close)

		Convey("The fetch fails", func() {
			_, err := opendata.New(srv.URL).Facilities(context.Background())
			So(errors.Is(err, opendata.ErrUnavailable), ShouldBeTrue)
		})
	})
}
