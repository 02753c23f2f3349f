// Package metrics provides Prometheus metrics for the parking availability service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultLatencyBuckets    = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}
	probabilityBuckets       = prometheus.LinearBuckets(0, 10, 11)
	factorBuckets            = prometheus.LinearBuckets(0, 0.1, 11)
	searchDurationBuckets    = []float64{30, 60, 120, 300, 600, 900, 1200, 1800, 3600}
	refreshDurationBucketsMs = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Ingestion
	trajectoriesRecorded prometheus.Counter
	parkingEvents        *prometheus.CounterVec
	reportsDuplicate     prometheus.Counter
	reportsRejected      *prometheus.CounterVec
	searchDuration       *prometheus.HistogramVec
	trajectoriesPruned   prometheus.Counter

	// Prediction
	predictions       *prometheus.CounterVec
	probability       prometheus.Histogram
	factors           *prometheus.HistogramVec
	predictionLatency *prometheus.HistogramVec
	fallbacks         *prometheus.CounterVec

	// Model snapshot
	refreshes         *prometheus.CounterVec
	refreshDuration   prometheus.Histogram
	refreshCoalesced  prometheus.Counter
	snapshotPatterns  prometheus.Gauge
	snapshotZones     prometheus.Gauge
	snapshotEvents    prometheus.Gauge
	snapshotBuiltUnix prometheus.Gauge

	// Store
	storeLatency      *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	storeTrajectories prometheus.Gauge
	storeEvents       prometheus.Gauge
	storeZones        prometheus.Gauge

	// Open data
	openDataFetches      *prometheus.CounterVec
	openDataBreakerState prometheus.Gauge
	openDataFacilities   prometheus.Gauge

	// HTTP
	httpRequests         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorRateByComponent *prometheus.CounterVec

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueRejected           prometheus.Counter
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // package-level recorders write here

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // served on /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "parca",
		subsystem:      "parking",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.trajectoriesRecorded = m.counter("trajectory_points_total", "Trajectory samples recorded")
	m.parkingEvents = m.counterVec("parking_events_total", "Parking outcomes recorded by result", "found")
	m.reportsDuplicate = m.counter("reports_duplicate_total", "Reports dropped because their reportId was already seen")
	m.reportsRejected = m.counterVec("reports_rejected_total", "Reports rejected by kind", "kind", "reason")
	m.searchDuration = m.histogramVec("search_duration_seconds", "Reported search duration in seconds", searchDurationBuckets, "found")
	m.trajectoriesPruned = m.counter("trajectory_points_pruned_total", "Trajectory samples removed by retention")

	m.predictions = m.counterVec("predictions_total", "Predictions served by operation", "operation")
	m.probability = m.histogram("prediction_probability", "Distribution of predicted probabilities (0-100)", probabilityBuckets)
	m.factors = m.histogramVec("prediction_factor", "Distribution of fused factors", factorBuckets, "factor")
	m.predictionLatency = m.histogramVec("prediction_latency_milliseconds", "Query latency by operation", m.latencyBuckets, "operation")
	m.fallbacks = m.counterVec("fallbacks_total", "Degraded answers served from the snapshot or heuristics", "operation", "source")

	m.refreshes = m.counterVec("model_refresh_total", "Snapshot rebuilds by outcome and trigger", "outcome", "reason")
	m.refreshDuration = m.histogram("model_refresh_duration_milliseconds", "Snapshot rebuild duration", refreshDurationBucketsMs)
	m.refreshCoalesced = m.counter("model_refresh_coalesced_total", "Refresh triggers merged into a pending refresh")
	m.snapshotPatterns = m.gauge("snapshot_time_patterns", "Time-pattern buckets in the live snapshot")
	m.snapshotZones = m.gauge("snapshot_zones", "Reliable zones in the live snapshot")
	m.snapshotEvents = m.gauge("snapshot_events", "Recent events in the live snapshot")
	m.snapshotBuiltUnix = m.gauge("snapshot_built_timestamp_seconds", "Unix time the live snapshot was built")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", m.latencyBuckets, "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "operation")
	m.storeTrajectories = m.gauge("store_trajectory_points", "Trajectory samples held by the store")
	m.storeEvents = m.gauge("store_parking_events", "Parking events held by the store")
	m.storeZones = m.gauge("store_zones", "Zones held by the store")

	m.openDataFetches = m.counterVec("opendata_fetches_total", "Open-data feed fetches by outcome", "outcome")
	m.openDataBreakerState = m.gauge("opendata_breaker_state", "Open-data circuit breaker state (0 closed, 1 half-open, 2 open)")
	m.openDataFacilities = m.gauge("opendata_facilities", "Public car parks in the cached open-data feed")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", m.latencyBuckets, "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("http_errors_total", "HTTP errors by endpoint and type", "endpoint", "method", "error_type")
	m.errorRateByComponent = m.counterVec("component_errors_total", "Errors by component and type", "component", "error_type")

	m.queueSize = m.gauge("refresh_queue_size", "Pending refresh requests")
	m.queueCapacity = m.gauge("refresh_queue_capacity", "Refresh queue capacity")
	m.queueEnqueued = m.counter("refresh_queue_enqueued_total", "Refresh requests enqueued")
	m.queueDequeued = m.counter("refresh_queue_dequeued_total", "Refresh requests dequeued")
	m.queueRejected = m.counter("refresh_queue_rejected_total", "Refresh requests rejected because the queue was full or closed")
	m.workerActiveCount = m.gauge("refresh_workers_active", "Refresh workers currently running")
	m.workerProcessingLatency = m.histogram("refresh_worker_latency_milliseconds", "Time spent handling one refresh request", refreshDurationBucketsMs)
	m.workerErrors = m.counter("refresh_worker_errors_total", "Refresh requests that failed in a worker")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Most recent GC pause", m.latencyBuckets)
}

// Ingestion.

func RecordTrajectoryPoint() { globalManager.trajectoriesRecorded.Inc() }

func RecordParkingEvent(found bool, searchSeconds int) {
	label := strconv.FormatBool(found)
	globalManager.parkingEvents.WithLabelValues(label).Inc()
	globalManager.searchDuration.WithLabelValues(label).Observe(float64(searchSeconds))
}

func RecordDuplicateReport() { globalManager.reportsDuplicate.Inc() }

func RecordRejectedReport(kind, reason string) {
	globalManager.reportsRejected.WithLabelValues(kind, reason).Inc()
}

func RecordTrajectoriesPruned(n int64) { globalManager.trajectoriesPruned.Add(float64(n)) }

// Prediction.

func RecordPrediction(operation string, probability int, timeF, spatialF, locationF float64) {
	RecordProbability(operation, probability)
	globalManager.factors.WithLabelValues("time").Observe(timeF)
	globalManager.factors.WithLabelValues("spatial").Observe(spatialF)
	globalManager.factors.WithLabelValues("location").Observe(locationF)
}

// RecordProbability counts an answer whose factors are not reported.
func RecordProbability(operation string, probability int) {
	globalManager.predictions.WithLabelValues(operation).Inc()
	globalManager.probability.Observe(float64(probability))
}

func RecordQuery(operation string, latency time.Duration) {
	globalManager.predictionLatency.WithLabelValues(operation).Observe(ms(latency))
}

func RecordFallback(operation, source string) {
	globalManager.fallbacks.WithLabelValues(operation, source).Inc()
}

// Model snapshot.

func RecordModelRefresh(reason string, took time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	globalManager.refreshes.WithLabelValues(outcome, reason).Inc()
	globalManager.refreshDuration.Observe(ms(took))
}

func RecordRefreshCoalesced() { globalManager.refreshCoalesced.Inc() }

func UpdateSnapshot(patterns, zones, events int, builtAt time.Time) {
	globalManager.snapshotPatterns.Set(float64(patterns))
	globalManager.snapshotZones.Set(float64(zones))
	globalManager.snapshotEvents.Set(float64(events))
	globalManager.snapshotBuiltUnix.Set(float64(builtAt.Unix()))
}

// Store.

func RecordStoreLatency(operation string, took time.Duration) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(ms(took))
}

func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

func UpdateStoreTotals(trajectories, events, zones int64) {
	globalManager.storeTrajectories.Set(float64(trajectories))
	globalManager.storeEvents.Set(float64(events))
	globalManager.storeZones.Set(float64(zones))
}

// Open data.

func RecordOpenDataFetch(outcome string) {
	globalManager.openDataFetches.WithLabelValues(outcome).Inc()
}

func UpdateOpenDataBreakerState(state int) {
	globalManager.openDataBreakerState.Set(float64(state))
}

func UpdateOpenDataFacilities(n int) { globalManager.openDataFacilities.Set(float64(n)) }

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// Queue and workers.

func UpdateQueueSize(size int)         { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func RecordQueueEnqueue()              { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()              { globalManager.queueDequeued.Inc() }
func RecordQueueRejected()             { globalManager.queueRejected.Inc() }

func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

func RecordWorkerProcessingLatency(took time.Duration) {
	globalManager.workerProcessingLatency.Observe(ms(took))
}

func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Runtime.

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
