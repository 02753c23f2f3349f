package api

import (
	"net/http"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/logger"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler handles stats and model refresh requests.
type StatsHandler struct {
	deps   ModelDependencies
	logger logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps ModelDependencies, log logger.Logger) *StatsHandler {
	return &StatsHandler{deps: deps, logger: log}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	overview, err := h.deps.Stats(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toStats(overview, h.deps.GetStats()))
}

// HandleRefresh handles POST /model/refresh. It rebuilds the snapshot
// synchronously and returns its summary.
func (h *StatsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.model_refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	info, err := h.deps.Refresh(r.Context(), model.RefreshManual)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toModel(info))
}
