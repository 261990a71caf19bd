package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/store"
)

// OptimizeResponse reports the outcome of an optimize pass, including
// whether the pass escalated to a rebuild.
type OptimizeResponse struct {
	index.OptimizeReport
	Rebuilt bool `json:"rebuilt"`
}

// IndexHandler handles index maintenance and introspection requests.
type IndexHandler struct {
	index  *index.EventIndex
	store  store.CalendarStore
	logger *slog.Logger
}

// NewIndexHandler creates an IndexHandler.
func NewIndexHandler(idx *index.EventIndex, st store.CalendarStore, logger *slog.Logger) *IndexHandler {
	return &IndexHandler{
		index:  idx,
		store:  st,
		logger: logger.With(slog.String("component", "index_handler")),
	}
}

// GetStats handles GET /index/stats.
func (h *IndexHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.index.Stats())
}

// Optimize handles POST /index/optimize. It runs an optimize pass
// synchronously and rebuilds from the store when the pass asks for it.
// Routine maintenance goes through the scheduler's index_optimization
// task; this endpoint exists for operators forcing a pass.
func (h *IndexHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	report := h.index.Optimize()
	rebuilt := false

	if report.RebuildRequired {
		events, err := h.store.ListEvents(r.Context())
		if err != nil {
			respondWithMappedError(w, r, h.logger, err)
			return
		}
		h.index.Rebuild(events)
		rebuilt = true
	}

	h.logger.Info("manual index optimize",
		"fragmentation", report.Fragmentation, "rebuilt", rebuilt)
	respondWithJSON(w, http.StatusOK, OptimizeResponse{OptimizeReport: report, Rebuilt: rebuilt})
}
