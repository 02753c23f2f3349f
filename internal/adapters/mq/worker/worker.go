// Package worker runs model rebuilds off the request path.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/okian/buscaparca/internal/adapters/mq/queue"
	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/logger"
	"github.com/okian/buscaparca/pkg/metrics"
)

const defaultRebuildTimeout = 30 * time.Second

// Rebuilder rebuilds the prediction snapshot from the store.
type Rebuilder interface {
	Rebuild(ctx context.Context, req model.RefreshRequest) error
}

// Queue defines how the worker receives requests. The worker receives
// from Requests only when idle, so a request triggered during a rebuild
// waits in the queue where later triggers coalesce with it.
type Queue interface {
	Requests() <-chan queue.Request
	Len() int
}

// RefreshWorker drains refresh requests one at a time, so at most one
// rebuild is in flight.
type RefreshWorker struct {
	queue     Queue
	rebuilder Rebuilder
	name      string
	timeout   time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	doneOnce     sync.Once

	logger logger.Logger
}

// NewRefreshWorker creates a worker with configuration options.
func NewRefreshWorker(q Queue, r Rebuilder, opts ...Option) *RefreshWorker {
	w := &RefreshWorker{
		queue:     q,
		rebuilder: r,
		name:      "refresh-worker",
		timeout:   defaultRebuildTimeout,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes requests until ctx is cancelled, Shutdown is called or the
// queue is closed.
func (w *RefreshWorker) Run(ctx context.Context) {
	defer w.doneOnce.Do(func() { close(w.done) })
	metrics.UpdateWorkerActiveCount(1)
	defer metrics.UpdateWorkerActiveCount(0)

	requests := w.queue.Requests()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			metrics.UpdateQueueSize(w.queue.Len())
			if err := w.process(ctx, req); err != nil {
				w.logger.Error(ctx, "refresh failed",
					logger.String("reason", req.Reason),
					logger.Error(err),
				)
			}
		}
	}
}

// Serve adapts Run to a suture supervisor. A worker that stopped because
// its queue closed or Shutdown was called is not restarted.
func (w *RefreshWorker) Serve(ctx context.Context) error {
	w.Run(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	return suture.ErrDoNotRestart
}

func (w *RefreshWorker) String() string { return w.name }

// Shutdown stops the worker after the current rebuild finishes.
func (w *RefreshWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *RefreshWorker) process(ctx context.Context, req model.RefreshRequest) error {
	start := time.Now()
	defer func() { metrics.RecordWorkerProcessingLatency(time.Since(start)) }()

	rctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.rebuilder.Rebuild(rctx, req); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "rebuild_error")
		return fmt.Errorf("rebuild (%s): %w", req.Reason, err)
	}
	w.logger.Debug(ctx, "refresh done",
		logger.String("reason", req.Reason),
		logger.Duration("queued_for", start.Sub(req.RequestedAt)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}
