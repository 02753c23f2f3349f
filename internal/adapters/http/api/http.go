// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"

	"github.com/okian/buscaparca/internal/adapters/repository"
	service "github.com/okian/buscaparca/internal/app"
	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/logger"
)

// QueryDependencies answers the read-side parking questions.
type QueryDependencies interface {
	Predict(ctx context.Context, lat, lon float64, ts time.Time) (model.Prediction, error)
	FindBestParking(ctx context.Context, lat, lon, maxDistance float64, limit int) ([]model.RankedZone, error)
	HotZones(ctx context.Context, lat, lon, radiusKm float64) ([]model.HotZone, error)
	NearbyPublicParking(ctx context.Context, lat, lon, radiusMeters float64, district string) ([]model.PublicParking, error)
}

// IngestDependencies records client reports.
type IngestDependencies interface {
	RecordTrajectory(ctx context.Context, p model.TrajectoryPoint) error
	RecordParkingEvent(ctx context.Context, e model.ParkingEvent, reportID string) (service.RecordResult, error)
}

// ModelDependencies exposes store counters and the model lifecycle.
type ModelDependencies interface {
	Stats(ctx context.Context) (service.Overview, error)
	Refresh(ctx context.Context, reason string) (model.ModelInfo, error)
	StatsProvider
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	QueryDependencies
	IngestDependencies
	ModelDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	queryHandler  *QueryHandler
	ingestHandler *IngestHandler

	ingestPerMinute int
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps, cfg.logger),
		queryHandler:    NewQueryHandler(deps, cfg.limits, cfg.logger),
		ingestHandler:   NewIngestHandler(deps, cfg.logger),
		ingestPerMinute: cfg.ingestPerMinute,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	limit := s.rateLimit()

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/model/refresh", MetricsMiddleware(s.statsHandler.HandleRefresh, "model_refresh"))

	mux.HandleFunc("/predict", MetricsMiddleware(s.queryHandler.HandlePredict, "predict"))
	mux.HandleFunc("/find-parking", MetricsMiddleware(s.queryHandler.HandleFindParking, "find_parking"))
	mux.HandleFunc("/hot-zones", MetricsMiddleware(s.queryHandler.HandleHotZones, "hot_zones"))
	mux.HandleFunc("/public-parking", MetricsMiddleware(s.queryHandler.HandlePublicParking, "public_parking"))

	mux.HandleFunc("/trajectory", MetricsMiddleware(limit(s.ingestHandler.HandleTrajectory), "trajectory"))
	mux.HandleFunc("/parking-event", MetricsMiddleware(limit(s.ingestHandler.HandleParkingEvent), "parking_event"))
}

// rateLimit returns a per-IP limiter for ingestion routes. A non-positive
// budget disables limiting.
func (s *Server) rateLimit() func(http.HandlerFunc) http.HandlerFunc {
	if s.ingestPerMinute <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	mw := httprate.Limit(s.ingestPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind("api.ingest", ErrRateLimited))
		}),
	)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return mw(next).ServeHTTP
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error to its HTTP status and error code.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrStoreUnavailable):
		log.Warn(ctx, "store unavailable", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", NewKind(op, ErrStoreUnavailable))
	default:
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
	}
}
