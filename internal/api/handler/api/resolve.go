// internal/api/handler/api/resolve.go
package api

import (
	"context"
	"net/http"

	"github.com/newthinker/verdict/internal/api/job"
	"github.com/newthinker/verdict/internal/api/response"
	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/engine"
	"go.uber.org/zap"
)

// Runner executes one resolution cycle. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context) (*engine.Result, error)
}

// ResolveResult is the body of POST /resolve-outcomes.
type ResolveResult struct {
	Success      bool                `json:"success"`
	CheckedCount int                 `json:"checkedCount"`
	CorrectCount int                 `json:"correctCount"`
	Stats        *core.StatsSnapshot `json:"stats,omitempty"`
	PurgedCount  int                 `json:"purgedCount"`
	SkippedCount int                 `json:"skippedCount"`
	PendingCount int                 `json:"pendingCount"`
	Source       string              `json:"source,omitempty"`
	Error        string              `json:"error,omitempty"`
	Code         string              `json:"code,omitempty"`
}

// NewResolveResult converts an engine result to its response form.
func NewResolveResult(r *engine.Result) ResolveResult {
	stats := r.Stats
	return ResolveResult{
		Success:      true,
		CheckedCount: r.Checked,
		CorrectCount: r.Correct,
		Stats:        &stats,
		PurgedCount:  r.Purged,
		SkippedCount: r.Skipped,
		PendingCount: r.Pending,
		Source:       r.Source,
	}
}

// ResolveHandler triggers resolution cycles.
type ResolveHandler struct {
	runner Runner
	jobs   *job.Store
	logger *zap.Logger
}

// NewResolveHandler creates a new resolve handler. jobs may be nil.
func NewResolveHandler(runner Runner, jobs *job.Store, logger *zap.Logger) *ResolveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolveHandler{runner: runner, jobs: jobs, logger: logger}
}

// Resolve runs one cycle. With ?async=true the cycle runs in the background
// and the response carries the run id to poll.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("async") == "true" && h.jobs != nil {
		run := h.jobs.Create("api")
		go h.track(context.WithoutCancel(r.Context()), run.ID)
		response.JSON(w, http.StatusAccepted, map[string]string{
			"runId":  run.ID,
			"status": string(run.Status),
		})
		return
	}

	var runID string
	if h.jobs != nil {
		runID = h.jobs.Create("api").ID
		h.jobs.Start(runID)
	}

	result, err := h.runner.Run(r.Context())
	if h.jobs != nil {
		h.jobs.Finish(runID, resultOrNil(result), err)
	}
	if err != nil {
		response.Raw(w, http.StatusInternalServerError, ResolveResult{
			Success: false,
			Error:   err.Error(),
			Code:    response.Detail(err).Code,
		})
		return
	}

	response.Raw(w, http.StatusOK, NewResolveResult(result))
}

func (h *ResolveHandler) track(ctx context.Context, runID string) {
	h.jobs.Start(runID)
	result, err := h.runner.Run(ctx)
	if err != nil {
		h.logger.Warn("background resolution failed", zap.String("run_id", runID), zap.Error(err))
	}
	h.jobs.Finish(runID, resultOrNil(result), err)
}

func resultOrNil(r *engine.Result) any {
	if r == nil {
		return nil
	}
	return NewResolveResult(r)
}
