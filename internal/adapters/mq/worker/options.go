package worker

import (
	"time"

	"github.com/okian/buscaparca/pkg/logger"
)

// Option applies a configuration option to the RefreshWorker.
type Option func(*RefreshWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *RefreshWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *RefreshWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithTimeout bounds a single rebuild.
func WithTimeout(d time.Duration) Option {
	return func(w *RefreshWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}
