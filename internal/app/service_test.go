package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/buscaparca/internal/adapters/repository"
	service "github.com/okian/buscaparca/internal/app"
	"github.com/okian/buscaparca/internal/domain/dedupe"
	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/internal/domain/prediction"
	"github.com/okian/buscaparca/pkg/logger"
)

const (
	centerLat = 40.4168
	centerLon = -3.7038
)

// wednesday14 is Wednesday 2024-01-03 14:00 UTC.
var wednesday14 = time.Date(2024, time.January, 3, 14, 0, 0, 0, time.UTC)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// flakyStore fails reads and writes on demand.
type flakyStore struct {
	*repository.MemoryStore
	failReads  atomic.Bool
	failWrites atomic.Bool
}

var errDown = fmt.Errorf("%w: connection refused", repository.ErrStoreUnavailable)

func (f *flakyStore) QueryZonesInRadius(ctx context.Context, lat, lon, radiusKm float64, minSamples int) ([]model.ParkingZone, error) {
	if f.failReads.Load() {
		return nil, errDown
	}
	return f.MemoryStore.QueryZonesInRadius(ctx, lat, lon, radiusKm, minSamples)
}

func (f *flakyStore) QueryEventsNear(ctx context.Context, lat, lon, radiusMeters float64) ([]model.ParkingEvent, error) {
	if f.failReads.Load() {
		return nil, errDown
	}
	return f.MemoryStore.QueryEventsNear(ctx, lat, lon, radiusMeters)
}

func (f *flakyStore) ListZones(ctx context.Context, minSamples, limit int) ([]model.ParkingZone, error) {
	if f.failReads.Load() {
		return nil, errDown
	}
	return f.MemoryStore.ListZones(ctx, minSamples, limit)
}

func (f *flakyStore) InsertParkingEvent(ctx context.Context, e model.ParkingEvent) (model.ParkingZone, error) {
	if f.failWrites.Load() {
		return model.ParkingZone{}, errDown
	}
	return f.MemoryStore.InsertParkingEvent(ctx, e)
}

type fakeOpenData struct {
	zones []model.HotZone
	parks []model.PublicParking
	err   error
}

func (f *fakeOpenData) Nearby(context.Context, float64, float64, float64) ([]model.PublicParking, error) {
	return f.parks, f.err
}

func (f *fakeOpenData) HotZones(context.Context) ([]model.HotZone, error) {
	return f.zones, f.err
}

func newService(store repository.Store, opts ...service.Option) *service.Service {
	engine := prediction.New(prediction.WithNoiseAmplitude(0), prediction.WithLocation(time.UTC))
	opts = append([]service.Option{service.WithClock(func() time.Time { return wednesday14 })}, opts...)
	return service.New(store, engine, opts...)
}

func report(lat, lon float64, found bool) model.ParkingEvent {
	return model.ParkingEvent{UserID: "u1", Latitude: lat, Longitude: lon, FoundParking: found, Timestamp: wednesday14}
}

// seedScenario records 20 found and 5 not-found reports within a few meters
// of the center.
func seedScenario(ctx context.Context, svc *service.Service) {
	for i := 0; i < 25; i++ {
		off := float64(i%5) * 0.00005
		_, err := svc.RecordParkingEvent(ctx, report(centerLat+off, centerLon, i < 20), "")
		So(err, ShouldBeNil)
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService(repository.NewMemoryStore(), service.WithRefreshInterval(0), service.WithRetention(time.Hour, 0))
		ctx := context.Background()

		Convey("It reports stopped and serves an empty snapshot", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Snapshot(), ShouldNotBeNil)
			So(svc.Snapshot().BuiltAt.IsZero(), ShouldBeTrue)
		})

		Convey("Start refreshes the model and Stop halts it", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(waitFor(func() bool { return !svc.Snapshot().BuiltAt.IsZero() }), ShouldBeTrue)

			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)

			Convey("A stopped service stays stopped", func() {
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
				So(svc.TriggerRefresh(ctx, model.RefreshManual), ShouldBeFalse)

				_, err := svc.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "")
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestService_RecordParkingEvent(t *testing.T) {
	Convey("Given a service over a memory store", t, func() {
		store := repository.NewMemoryStore()
		svc := newService(store, service.WithRefreshEvery(2), service.WithRefreshInterval(0))
		ctx := context.Background()

		Convey("Events are stamped from the server clock when no timestamp is given", func() {
			res, err := svc.RecordParkingEvent(ctx, model.ParkingEvent{UserID: "u1", Latitude: centerLat, Longitude: centerLon, FoundParking: true}, "")
			So(err, ShouldBeNil)
			So(res.Duplicate, ShouldBeFalse)
			So(res.Event.Timestamp, ShouldEqual, wednesday14)
			So(res.Event.DayOfWeek, ShouldEqual, int(time.Wednesday))
			So(res.Event.Hour, ShouldEqual, 14)
			So(res.Zone.TotalCount, ShouldEqual, 1)
			So(res.Zone.SuccessCount, ShouldEqual, 1)
		})

		Convey("A repeated report ID is acknowledged without being stored", func() {
			_, err := svc.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "r-1")
			So(err, ShouldBeNil)
			res, err := svc.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "r-1")
			So(err, ShouldBeNil)
			So(res.Duplicate, ShouldBeTrue)

			st, err := store.CountStats(ctx)
			So(err, ShouldBeNil)
			So(st.Events, ShouldEqual, 1)
		})

		Convey("A shared report-ID cache spans service instances", func() {
			seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10))
			a := newService(store, service.WithDeduper(seen))
			b := newService(store, service.WithDeduper(seen))

			_, err := a.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "r-shared")
			So(err, ShouldBeNil)
			res, err := b.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "r-shared")
			So(err, ShouldBeNil)
			So(res.Duplicate, ShouldBeTrue)
		})

		Convey("Invalid reports are rejected", func() {
			_, err := svc.RecordParkingEvent(ctx, model.ParkingEvent{UserID: "u1", Latitude: 120, Longitude: 0}, "")
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			_, err = svc.RecordParkingEvent(ctx, model.ParkingEvent{Latitude: 40, Longitude: -3}, "")
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("Every N-th event refreshes the model in the background", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()
			So(waitFor(func() bool { return !svc.Snapshot().BuiltAt.IsZero() }), ShouldBeTrue)

			for i := 0; i < 4; i++ {
				_, err := svc.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "")
				So(err, ShouldBeNil)
			}
			So(waitFor(func() bool { return svc.Snapshot().Info().Events == 4 }), ShouldBeTrue)
		})

		Convey("Trajectories are stored and pruned after the retention window", func() {
			svc := newService(store, service.WithRetention(24*time.Hour, 0))
			So(svc.RecordTrajectory(ctx, model.TrajectoryPoint{UserID: "u1", Latitude: centerLat, Longitude: centerLon, Timestamp: wednesday14.Add(-48 * time.Hour)}), ShouldBeNil)
			So(svc.RecordTrajectory(ctx, model.TrajectoryPoint{UserID: "u1", Latitude: centerLat, Longitude: centerLon}), ShouldBeNil)

			n, err := svc.PruneTrajectories(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			ov, err := svc.Stats(ctx)
			So(err, ShouldBeNil)
			So(ov.Store.Trajectories, ShouldEqual, 1)
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given 20 found and 5 not-found reports at the center on Wednesday 14:00", t, func() {
		store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
		svc := newService(store, service.WithRefreshInterval(0))
		ctx := context.Background()

		baseline, err := svc.Predict(ctx, centerLat, centerLon, wednesday14)
		So(err, ShouldBeNil)
		So(baseline.Probability, ShouldEqual, 56)

		seedScenario(ctx, svc)
		info, err := svc.Refresh(ctx, model.RefreshManual)
		So(err, ShouldBeNil)
		So(info.Events, ShouldEqual, 25)
		So(info.Zones, ShouldBeGreaterThanOrEqualTo, 1)

		Convey("The prediction rises above the empty-model baseline", func() {
			p, err := svc.Predict(ctx, centerLat, centerLon, wednesday14)
			So(err, ShouldBeNil)
			So(p.LocationFactor, ShouldAlmostEqual, 0.8)
			So(p.TimeFactor, ShouldAlmostEqual, 0.8)
			So(p.Probability, ShouldBeGreaterThan, baseline.Probability)
			So(len(p.NearbyZones), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("A store outage is answered from the snapshot", func() {
			fresh, err := svc.Predict(ctx, centerLat, centerLon, wednesday14)
			So(err, ShouldBeNil)

			store.failReads.Store(true)
			degraded, err := svc.Predict(ctx, centerLat, centerLon, wednesday14)
			So(err, ShouldBeNil)
			So(degraded.Probability, ShouldEqual, fresh.Probability)
			So(degraded.LocationFactor, ShouldAlmostEqual, 0.8)

			ranked, err := svc.FindBestParking(ctx, centerLat, centerLon, 1000, 10)
			So(err, ShouldBeNil)
			So(len(ranked), ShouldBeGreaterThanOrEqualTo, 1)

			_, err = svc.Refresh(ctx, model.RefreshManual)
			So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)
			So(svc.Snapshot().Info().Events, ShouldEqual, 25)
		})

		Convey("Writes fail with the store unavailable", func() {
			store.failWrites.Store(true)
			_, err := svc.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "r-9")
			So(errors.Is(err, repository.ErrStoreUnavailable), ShouldBeTrue)

			store.failWrites.Store(false)
			res, err := svc.RecordParkingEvent(ctx, report(centerLat, centerLon, true), "r-9")
			So(err, ShouldBeNil)
			So(res.Duplicate, ShouldBeFalse)
		})

		Convey("Out-of-range coordinates are rejected", func() {
			_, err := svc.Predict(ctx, 91, 0, wednesday14)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestService_FindBestParking(t *testing.T) {
	Convey("Given zones with different volumes around the center", t, func() {
		svc := newService(repository.NewMemoryStore(), service.WithRefreshInterval(0))
		ctx := context.Background()

		seed := func(lat, lon float64, found, total int) {
			for i := 0; i < total; i++ {
				_, err := svc.RecordParkingEvent(ctx, report(lat, lon, i < found), "")
				So(err, ShouldBeNil)
			}
		}
		seed(centerLat+0.002, centerLon, 4, 5)
		seed(centerLat, centerLon+0.003, 2, 4)
		seed(centerLat-0.002, centerLon, 2, 2)
		seed(centerLat+0.05, centerLon, 5, 5)
		_, err := svc.Refresh(ctx, model.RefreshManual)
		So(err, ShouldBeNil)

		Convey("Only reliable zones inside the distance are ranked", func() {
			ranked, err := svc.FindBestParking(ctx, centerLat, centerLon, 1000, 10)
			So(err, ShouldBeNil)
			So(len(ranked), ShouldEqual, 2)
			for _, r := range ranked {
				So(r.TotalCount, ShouldBeGreaterThanOrEqualTo, 3)
				So(r.Distance, ShouldBeLessThanOrEqualTo, 1000)
			}
		})

		Convey("The limit truncates the answer", func() {
			ranked, err := svc.FindBestParking(ctx, centerLat, centerLon, 1000, 1)
			So(err, ShouldBeNil)
			So(len(ranked), ShouldEqual, 1)
		})

		Convey("A non-positive distance is rejected", func() {
			_, err := svc.FindBestParking(ctx, centerLat, centerLon, 0, 10)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestService_HotZonesAndPublicParking(t *testing.T) {
	Convey("Given crowd zones and an open-data source", t, func() {
		od := &fakeOpenData{
			zones: []model.HotZone{
				{Latitude: centerLat + 0.001, Longitude: centerLon, Weight: 5, Radius: 100, SuccessRate: 0.9, Source: model.SourceOpenData},
				{Latitude: 41.3851, Longitude: 2.1734, Weight: 9, Radius: 100, SuccessRate: 1, Source: model.SourceOpenData},
			},
			parks: []model.PublicParking{
				{Name: "Sol", District: "Centro", Latitude: centerLat, Longitude: centerLon, Capacity: 10, FreePlaces: 5},
				{Name: "Velázquez", District: "Salamanca", Latitude: centerLat + 0.005, Longitude: centerLon, Capacity: 20},
			},
		}
		svc := newService(repository.NewMemoryStore(), service.WithPublicParking(od), service.WithRefreshInterval(0))
		ctx := context.Background()
		for i := 0; i < 4; i++ {
			_, err := svc.RecordParkingEvent(ctx, report(centerLat, centerLon, i < 3), "")
			So(err, ShouldBeNil)
		}

		Convey("Open-data zones inside the radius are merged by weight", func() {
			hot, err := svc.HotZones(ctx, centerLat, centerLon, 2)
			So(err, ShouldBeNil)
			So(len(hot), ShouldEqual, 2)
			So(hot[0].Source, ShouldEqual, model.SourceOpenData)
			So(hot[1].Source, ShouldEqual, model.SourceCrowd)
			So(hot[1].Weight, ShouldBeGreaterThan, 0)
		})

		Convey("A failing feed leaves crowd zones only", func() {
			od.err = errors.New("feed down")
			od.zones = nil
			hot, err := svc.HotZones(ctx, centerLat, centerLon, 2)
			So(err, ShouldBeNil)
			So(len(hot), ShouldEqual, 1)

			parks, err := svc.NearbyPublicParking(ctx, centerLat, centerLon, 1000, "")
			So(err, ShouldBeNil)
			So(len(parks), ShouldEqual, 0)
		})

		Convey("Nearby public parking comes from the feed", func() {
			parks, err := svc.NearbyPublicParking(ctx, centerLat, centerLon, 1000, "")
			So(err, ShouldBeNil)
			So(len(parks), ShouldEqual, 2)
		})

		Convey("A district keeps only the facilities inside it", func() {
			parks, err := svc.NearbyPublicParking(ctx, centerLat, centerLon, 1000, " centro ")
			So(err, ShouldBeNil)
			So(len(parks), ShouldEqual, 1)
			So(parks[0].Name, ShouldEqual, "Sol")

			parks, err = svc.NearbyPublicParking(ctx, centerLat, centerLon, 1000, "Retiro")
			So(err, ShouldBeNil)
			So(parks, ShouldBeEmpty)
		})
	})

	Convey("Without an open-data source public parking is empty", t, func() {
		svc := newService(repository.NewMemoryStore())
		parks, err := svc.NearbyPublicParking(context.Background(), centerLat, centerLon, 1000, "")
		So(err, ShouldBeNil)
		So(parks, ShouldBeEmpty)
	})
}
