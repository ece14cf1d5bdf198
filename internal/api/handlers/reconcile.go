package handlers

import (
	"net/http"
	"sync/atomic"

	"github.com/clearledger/reconcile-backend/internal/api/dto"
	"github.com/clearledger/reconcile-backend/internal/domain/reconcile"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/progress"
)

// ReconcileHandler handles reconciliation runs and their reporting views.
type ReconcileHandler struct {
	*Base
	engine *reconcile.Engine
	sink   progress.Sink

	// Runs must not overlap; concurrent run requests are rejected.
	running atomic.Bool
}

// NewReconcileHandler creates a new reconcile handler. sink may be nil.
func NewReconcileHandler(repo storage.Repository, engine *reconcile.Engine, sink progress.Sink) *ReconcileHandler {
	return &ReconcileHandler{
		Base:   NewBase(repo),
		engine: engine,
		sink:   sink,
	}
}

// Run handles POST /api/reconcile/run - executes one reconciliation run.
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.running.CompareAndSwap(false, true) {
		h.WriteError(w, http.StatusConflict, dto.ConflictError("a reconciliation run is already in progress"))
		return
	}
	defer h.running.Store(false)

	stats, err := h.engine.Run(r.Context(), h.sink)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ToRunResponse(stats))
}

// Stats handles GET /api/reconcile/stats - returns aggregate counters.
func (h *ReconcileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ToStatsResponse(stats))
}

// Activity handles GET /api/reconcile/activity - returns recent matches.
func (h *ReconcileHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	matches, err := h.repo.ListRecentMatches(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.ActivityResponse{
		Matches: make([]dto.MatchActivityResponse, 0, len(matches)),
		Count:   len(matches),
	}
	for _, match := range matches {
		response.Matches = append(response.Matches, dto.ToMatchActivityResponse(match))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Clear handles DELETE /api/reconcile/clear - deletes all matches, records
// and batches.
func (h *ReconcileHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Reset(r.Context()); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ClearResponse{Status: "cleared"})
}
