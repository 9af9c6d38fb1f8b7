// internal/api/handler/api/calls.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/verdict/internal/api/response"
	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/resolver"
	"github.com/newthinker/verdict/internal/storage/ledger"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// CallsHandler lists and ingests calls.
type CallsHandler struct {
	store ledger.Store
	now   func() time.Time
}

// NewCallsHandler creates a new calls handler.
func NewCallsHandler(store ledger.Store) *CallsHandler {
	return &CallsHandler{store: store, now: time.Now}
}

// List returns calls newest first, optionally filtered by status
// (pending or checked).
func (h *CallsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	if status != "" && status != "pending" && status != "checked" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidRequest, fmt.Errorf("unknown status %q", status)))
		return
	}

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrInvalidRequest, fmt.Errorf("invalid limit %q", v)))
			return
		}
		limit = min(n, maxLimit)
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrInvalidRequest, fmt.Errorf("invalid offset %q", v)))
			return
		}
		offset = n
	}

	doc, _, err := h.store.Load(r.Context())
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	matched := make([]core.Call, 0, len(doc.Signals))
	for _, c := range doc.Signals {
		switch {
		case status == "pending" && c.Checked:
			continue
		case status == "checked" && !c.Checked:
			continue
		}
		matched = append(matched, c)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(offset, total)
	end := min(start+limit, total)
	response.List(w, matched[start:end], total)
}

// Get returns one call by id.
func (h *CallsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, _, err := h.store.Load(r.Context())
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	for _, c := range doc.Signals {
		if c.ID == id {
			response.JSON(w, http.StatusOK, c)
			return
		}
	}
	response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, fmt.Errorf("call %q", id)))
}

// CreateCallRequest is the body of POST /api/calls.
type CreateCallRequest struct {
	ID         string         `json:"id"`
	Symbol     string         `json:"symbol"`
	CreatedAt  time.Time      `json:"createdAt"`
	EntryPrice float64        `json:"entryPrice"`
	Direction  core.Direction `json:"direction"`
	Confidence float64        `json:"confidence"`
	Target     *float64       `json:"target"`
	StopLoss   *float64       `json:"stopLoss"`
}

// Create ingests a new pending call. Verdict fields are never accepted from
// the caller.
func (h *CallsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidRequest, fmt.Errorf("decoding body: %w", err)))
		return
	}

	now := h.now()
	call := core.Call{
		ID:         req.ID,
		Symbol:     req.Symbol,
		CreatedAt:  req.CreatedAt,
		EntryPrice: req.EntryPrice,
		Direction:  req.Direction,
		Confidence: req.Confidence,
		Target:     req.Target,
		StopLoss:   req.StopLoss,
	}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = now
	}
	if call.Direction == core.DirectionNeutral {
		call.Target, call.StopLoss = nil, nil
	}

	if err := resolver.Validate(call, now); err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	if err := ledger.Append(r.Context(), h.store, call, now); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	response.JSON(w, http.StatusCreated, call)
}
