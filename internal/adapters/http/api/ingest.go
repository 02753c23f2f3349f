package api

import (
	"net/http"

	"github.com/okian/buscaparca/pkg/logger"
)

// IngestHandler accepts trajectory samples and parking reports.
type IngestHandler struct {
	deps   IngestDependencies
	logger logger.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies, log logger.Logger) *IngestHandler {
	return &IngestHandler{deps: deps, logger: log}
}

// HandleTrajectory handles POST /trajectory requests.
func (h *IngestHandler) HandleTrajectory(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_trajectory"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req trajectoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.RecordTrajectory(r.Context(), req.point()); err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "recorded"})
}

// HandleParkingEvent handles POST /parking-event requests. A repeated
// reportId is acknowledged with 200 and not stored again.
func (h *IngestHandler) HandleParkingEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_parking_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req parkingEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.RecordParkingEvent(r.Context(), req.event(), req.ReportID)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	zone := toZone(res.Zone)
	writeJSON(w, http.StatusCreated, ackResponse{Status: "recorded", Zone: &zone})
}
