// internal/api/handler/api/stats.go
package api

import (
	"net/http"

	"github.com/newthinker/verdict/internal/api/response"
	"github.com/newthinker/verdict/internal/storage/ledger"
)

// StatsHandler serves the stored statistics snapshot.
type StatsHandler struct {
	store ledger.Store
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store ledger.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// Get returns the statistics saved by the last cycle.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, _, err := h.store.Load(r.Context())
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"stats":       doc.Stats,
		"lastUpdated": doc.LastUpdated,
	})
}
