// internal/api/handler/api/runs.go
package api

import (
	"net/http"

	"github.com/newthinker/verdict/internal/api/job"
	"github.com/newthinker/verdict/internal/api/response"
)

// RunsHandler exposes the history of resolution runs.
type RunsHandler struct {
	jobs *job.Store
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(jobs *job.Store) *RunsHandler {
	return &RunsHandler{jobs: jobs}
}

// List returns recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.jobs.List()
	response.List(w, runs, len(runs))
}

// Get returns one run by id.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, run)
}
