package service

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/buscaparca/pkg/logger"
	"github.com/okian/buscaparca/pkg/metrics"
)

const runtimeMetricsInterval = 15 * time.Second

// job runs fn every interval until its context ends. It implements
// suture.Service.
type job struct {
	name  string
	every time.Duration
	fn    func(ctx context.Context)
}

func newJob(name string, every time.Duration, fn func(ctx context.Context)) *job {
	return &job{name: name, every: every, fn: fn}
}

func (j *job) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.fn(ctx)
		}
	}
}

func (j *job) String() string { return j.name }

// PruneTrajectories deletes trajectory samples older than the retention
// window.
func (s *Service) PruneTrajectories(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.retention)
	n, err := s.store.PruneTrajectories(ctx, before)
	if err != nil {
		metrics.RecordErrorByComponent("prune", errorKind(err))
		return 0, err
	}
	metrics.RecordTrajectoriesPruned(n)
	if n > 0 {
		s.logger.Info(ctx, "pruned trajectory samples", logger.Int64("deleted", n))
	}
	return n, nil
}

func (s *Service) updateRuntimeMetrics(ctx context.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		last := m.PauseNs[(m.NumGC+255)%256]
		metrics.RecordSystemGCPauseTime(float64(last) / float64(time.Millisecond))
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if st, err := s.store.CountStats(sctx); err == nil {
		metrics.UpdateStoreTotals(st.Trajectories, st.Events, st.Zones)
	}
}
