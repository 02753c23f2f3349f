package api

import (
	"net/http"
	"time"

	"github.com/okian/buscaparca/pkg/logger"
)

// QueryHandler serves prediction, ranking and map queries.
type QueryHandler struct {
	deps   QueryDependencies
	limits Limits
	logger logger.Logger
	now    func() time.Time
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps QueryDependencies, limits Limits, log logger.Logger) *QueryHandler {
	return &QueryHandler{deps: deps, limits: limits, logger: log, now: time.Now}
}

// HandlePredict handles GET /predict?latitude=&longitude=&timestamp=.
func (h *QueryHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	lat, lon, err := coordinates(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	ts, err := optionalTime(q, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	p, err := h.deps.Predict(r.Context(), lat, lon, ts)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrediction(p))
}

// HandleFindParking handles GET /find-parking?latitude=&longitude=&maxDistance=&limit=.
func (h *QueryHandler) HandleFindParking(w http.ResponseWriter, r *http.Request) {
	const op = "api.find_parking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	lat, lon, err := coordinates(q)
	var maxDistance float64
	if err == nil {
		maxDistance, err = optionalFloat(q, "maxDistance", h.limits.DefaultMaxDistance)
	}
	var limit int
	if err == nil {
		limit, err = optionalLimit(q, h.limits.DefaultLimit, h.limits.MaxLimit)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	zones, err := h.deps.FindBestParking(r.Context(), lat, lon, maxDistance, limit)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toRanked(zones))
}

// HandleHotZones handles GET /hot-zones?latitude=&longitude=&radius= (km).
func (h *QueryHandler) HandleHotZones(w http.ResponseWriter, r *http.Request) {
	const op = "api.hot_zones"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	lat, lon, err := coordinates(q)
	var radius float64
	if err == nil {
		radius, err = optionalFloat(q, "radius", h.limits.DefaultHotZoneRadius)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	zones, err := h.deps.HotZones(r.Context(), lat, lon, radius)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toHotZones(zones))
}

// HandlePublicParking handles GET /public-parking?latitude=&longitude=&radius= (m)&district=.
// The list is empty when the open-data feed is disabled or unreachable.
func (h *QueryHandler) HandlePublicParking(w http.ResponseWriter, r *http.Request) {
	const op = "api.public_parking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	lat, lon, err := coordinates(q)
	var radius float64
	if err == nil {
		radius, err = optionalFloat(q, "radius", h.limits.DefaultParkingRadius)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	parks, err := h.deps.NearbyPublicParking(r.Context(), lat, lon, radius, q.Get("district"))
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toFacilities(parks))
}
