package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("A manager with custom options registers its collectors", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"instance": "a"}),
				WithPrometheusRegistry(registry),
			)
			So(m, ShouldNotBeNil)

			m.trajectoriesRecorded.Inc()
			families, err := registry.Gather()
			So(err, ShouldBeNil)

			found := false
			for _, f := range families {
				if f.GetName() == "test_unit_trajectory_points_total" {
					found = true
					So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "a")
				}
			}
			So(found, ShouldBeTrue)
		})

		Convey("Registering twice on the same registry panics", func() {
			NewManager(WithPrometheusRegistry(registry))
			So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Ingestion recorders count by label", func() {
			before := testutil.ToFloat64(globalManager.parkingEvents.WithLabelValues("true"))
			RecordParkingEvent(true, 120)
			RecordParkingEvent(true, 60)
			RecordParkingEvent(false, 900)
			So(testutil.ToFloat64(globalManager.parkingEvents.WithLabelValues("true")), ShouldEqual, before+2)

			So(func() {
				RecordTrajectoryPoint()
				RecordDuplicateReport()
				RecordRejectedReport("parking_event", "validation")
				RecordTrajectoriesPruned(42)
			}, ShouldNotPanic)
		})

		Convey("Prediction recorders accept factor observations", func() {
			before := testutil.ToFloat64(globalManager.predictions.WithLabelValues("predict"))
			RecordPrediction("predict", 73, 0.65, 0.3, 0.8)
			So(testutil.ToFloat64(globalManager.predictions.WithLabelValues("predict")), ShouldEqual, before+1)

			So(func() {
				RecordQuery("predict", 3*time.Millisecond)
				RecordFallback("predict", "snapshot")
			}, ShouldNotPanic)
		})

		Convey("Refresh outcomes are split by error", func() {
			RecordModelRefresh("event_threshold", time.Millisecond, nil)
			RecordModelRefresh("event_threshold", time.Millisecond, errors.New("store down"))
			So(testutil.ToFloat64(globalManager.refreshes.WithLabelValues("failure", "event_threshold")), ShouldBeGreaterThanOrEqualTo, 1)

			builtAt := time.Unix(1700000000, 0)
			UpdateSnapshot(12, 40, 500, builtAt)
			So(testutil.ToFloat64(globalManager.snapshotZones), ShouldEqual, 40)
			So(testutil.ToFloat64(globalManager.snapshotBuiltUnix), ShouldEqual, 1700000000)
		})

		Convey("Store, open data, HTTP, queue and runtime recorders do not panic", func() {
			So(func() {
				RecordStoreLatency("insert_event", time.Millisecond)
				RecordStoreError("insert_event")
				UpdateStoreTotals(10, 20, 3)
				RecordOpenDataFetch("success")
				UpdateOpenDataBreakerState(2)
				UpdateOpenDataFacilities(17)
				RecordHTTPRequest("/predict", "GET", "200")
				RecordHTTPRequestDuration("/predict", "GET", "200", 4.2)
				RecordErrorByEndpoint("/parking-event", "POST", "validation")
				RecordErrorByComponent("refresh", "store_unavailable")
				RecordRefreshCoalesced()
				UpdateQueueSize(1)
				UpdateQueueCapacity(1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueRejected()
				UpdateWorkerActiveCount(1)
				RecordWorkerProcessingLatency(time.Millisecond)
				RecordWorkerError()
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("The custom registry exposes the parca namespace", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "parca_parking_"), ShouldBeTrue)
			}
		})
	})
}
