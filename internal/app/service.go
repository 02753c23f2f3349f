// Package service wires storage, the prediction engine and the refresh
// pipeline into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/sync/errgroup"

	"github.com/okian/buscaparca/internal/adapters/mq/queue"
	"github.com/okian/buscaparca/internal/adapters/mq/worker"
	"github.com/okian/buscaparca/internal/adapters/repository"
	"github.com/okian/buscaparca/internal/domain/dedupe"
	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/internal/domain/prediction"
	"github.com/okian/buscaparca/pkg/logger"
	"github.com/okian/buscaparca/pkg/metrics"
)

const (
	defaultRefreshEvery      = 10
	defaultRefreshInterval   = 5 * time.Minute
	defaultRefreshTimeout    = 10 * time.Second
	defaultStoreTimeout      = 2 * time.Second
	defaultRecentEventsLimit = 10000
	defaultZoneCacheLimit    = 5000
	defaultRetention         = 30 * 24 * time.Hour
	defaultPruneInterval     = time.Hour
	defaultMaxHotZones       = 50
	defaultDedupeSize        = 100_000
	stopTimeout              = 10 * time.Second
)

// PublicParkingSource provides off-street car parks from an open-data feed.
type PublicParkingSource interface {
	Nearby(ctx context.Context, lat, lon, radiusMeters float64) ([]model.PublicParking, error)
	HotZones(ctx context.Context) ([]model.HotZone, error)
}

// Service implements the API dependencies for the parking system.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	engine   *prediction.Engine
	deduper  dedupe.Deduper
	openData PublicParkingSource
	queue    *queue.InMemoryQueue
	worker   *worker.RefreshWorker

	snapshot  atomic.Pointer[prediction.Snapshot]
	rebuildMu sync.Mutex
	recorded  atomic.Int64

	refreshEvery      int64
	refreshInterval   time.Duration
	refreshTimeout    time.Duration
	storeTimeout      time.Duration
	recentEventsLimit int
	zoneCacheLimit    int
	retention         time.Duration
	pruneInterval     time.Duration
	maxHotZones       int
	dedupeSize        int
	now               func() time.Time

	started bool
	cancel  context.CancelFunc
	stopped <-chan error

	logger logger.Logger
}

// New constructs a Service over store and engine.
func New(store repository.Store, engine *prediction.Engine, opts ...Option) *Service {
	s := &Service{
		store:             store,
		engine:            engine,
		refreshEvery:      defaultRefreshEvery,
		refreshInterval:   defaultRefreshInterval,
		refreshTimeout:    defaultRefreshTimeout,
		storeTimeout:      defaultStoreTimeout,
		recentEventsLimit: defaultRecentEventsLimit,
		zoneCacheLimit:    defaultZoneCacheLimit,
		retention:         defaultRetention,
		pruneInterval:     defaultPruneInterval,
		maxHotZones:       defaultMaxHotZones,
		dedupeSize:        defaultDedupeSize,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = prediction.New()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	s.queue = queue.NewInMemoryQueue()
	s.worker = worker.NewRefreshWorker(s.queue, s,
		worker.WithLogger(s.logger.Named("refresh")),
		worker.WithTimeout(s.refreshTimeout),
	)
	s.snapshot.Store(prediction.EmptySnapshot())
	return s
}

// Start launches the refresh worker and background jobs under a supervisor
// and queues the start-up refresh.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.queue.IsClosed() {
		return ErrStopped
	}
	s.logger.Info(ctx, "starting parking service...")

	sup := suture.New("parking-service", suture.Spec{
		EventHook: func(e suture.Event) {
			s.logger.Warn(context.Background(), "supervisor event", logger.String("event", e.String()))
		},
		Timeout: stopTimeout,
	})
	sup.Add(s.worker)
	if s.refreshInterval > 0 {
		sup.Add(newJob("periodic-refresh", s.refreshInterval, func(ctx context.Context) {
			s.TriggerRefresh(ctx, model.RefreshPeriodic)
		}))
	}
	if s.pruneInterval > 0 {
		sup.Add(newJob("trajectory-prune", s.pruneInterval, func(ctx context.Context) {
			if _, err := s.PruneTrajectories(ctx); err != nil {
				s.logger.Warn(ctx, "trajectory prune failed", logger.Error(err))
			}
		}))
	}
	sup.Add(newJob("runtime-metrics", runtimeMetricsInterval, s.updateRuntimeMetrics))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.stopped = sup.ServeBackground(runCtx)
	s.started = true

	s.TriggerRefresh(ctx, model.RefreshStartup)
	s.logger.Info(ctx, "parking service started",
		logger.Int64("refreshEvery", s.refreshEvery),
		logger.Duration("refreshInterval", s.refreshInterval),
		logger.Duration("retention", s.retention),
		logger.Bool("openData", s.openData != nil),
	)
	return nil
}

// Stop lets an in-flight rebuild finish, halts background work and closes
// the refresh queue. Later triggers are dropped and Start returns
// ErrStopped. The store is left open for its owner.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping parking service...")

	if err := s.worker.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "refresh worker did not stop in time", logger.Error(err))
	}
	s.cancel()
	select {
	case err := <-s.stopped:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn(ctx, "supervisor stopped with error", logger.Error(err))
		}
	case <-ctx.Done():
		s.logger.Warn(ctx, "supervisor stop timed out")
	}
	if err := s.queue.Close(); err != nil {
		s.logger.Warn(ctx, "refresh queue close failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "parking service stopped")
}

// Snapshot returns the current model snapshot. It is never nil.
func (s *Service) Snapshot() *prediction.Snapshot {
	return s.snapshot.Load()
}

// TriggerRefresh asks the worker for a rebuild. It reports whether the
// request was queued or folded into a pending one.
func (s *Service) TriggerRefresh(ctx context.Context, reason string) bool {
	ok, err := s.queue.Enqueue(ctx, model.RefreshRequest{Reason: reason, RequestedAt: s.now()})
	if err != nil {
		s.logger.Debug(ctx, "refresh request dropped", logger.String("reason", reason), logger.Error(err))
		return false
	}
	return ok
}

// Refresh rebuilds the snapshot synchronously and returns its summary.
func (s *Service) Refresh(ctx context.Context, reason string) (model.ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()
	if err := s.Rebuild(ctx, model.RefreshRequest{Reason: reason, RequestedAt: s.now()}); err != nil {
		return model.ModelInfo{}, err
	}
	return s.Snapshot().Info(), nil
}

// Rebuild loads recent events and reliable zones from the store and swaps
// in a new snapshot. On failure the previous snapshot stays in place.
func (s *Service) Rebuild(ctx context.Context, req model.RefreshRequest) (err error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	defer func() { metrics.RecordModelRefresh(req.Reason, time.Since(start), err) }()

	var (
		events []model.ParkingEvent
		zones  []model.ParkingZone
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = s.store.QueryRecentEvents(gctx, s.recentEventsLimit)
		return err
	})
	g.Go(func() error {
		var err error
		zones, err = s.store.ListZones(gctx, s.engine.MinSamples(), s.zoneCacheLimit)
		return err
	})
	if err = g.Wait(); err != nil {
		metrics.RecordErrorByComponent("refresh", errorKind(err))
		return fmt.Errorf("refresh model: %w", err)
	}

	snap := prediction.NewSnapshot(events, zones, s.engine.MinSamples(), s.now())
	s.snapshot.Store(snap)

	info := snap.Info()
	metrics.UpdateSnapshot(info.Patterns, info.Zones, info.Events, info.BuiltAt)
	s.logger.Info(ctx, "model refreshed",
		logger.String("reason", req.Reason),
		logger.Int("patterns", info.Patterns),
		logger.Int("zones", info.Zones),
		logger.Int("events", info.Events),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"refreshEvery":     s.refreshEvery,
		"eventsRecorded":   s.recorded.Load(),
		"pendingRefreshes": s.queue.Len(),
		"dedupeEntries":    s.deduper.Size(),
		"openData":         s.openData != nil,
	}
	metrics.UpdateQueueSize(s.queue.Len())
	return stats
}

// errorKind labels an error for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, repository.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
