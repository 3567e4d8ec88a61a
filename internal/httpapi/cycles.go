package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sawpanic/confluence/internal/domain"
)

func (h *handlers) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.store.Cycles().List(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(cycles), "data": cycles})
}

// PostCycle registers a new custom cycle. A request that reuses an existing
// cycle's ID is rejected as a collision (spec §6.2's 409 "cycle overlap"),
// rather than silently overwriting a cycle with live hit/miss history.
func (h *handlers) PostCycle(w http.ResponseWriter, r *http.Request) {
	var cycle domain.CustomCycle
	if err := json.NewDecoder(r.Body).Decode(&cycle); err != nil {
		writeBadRequest(w, r, "malformed_body", "request body is not valid JSON")
		return
	}
	if cycle.PeriodDays <= 0 || cycle.AnchorDate.IsZero() {
		writeUnprocessable(w, r, "invalid_cycle", "period_days and anchor_date are required")
		return
	}
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	} else if existing, err := h.store.Cycles().Get(r.Context(), cycle.ID); err != nil {
		writeInternal(w, r, err)
		return
	} else if existing != nil {
		writeConflict(w, r, "cycle_exists", "a cycle with that id already exists")
		return
	}
	if cycle.Direction == "" {
		cycle.Direction = domain.CycleDirectionAny
	}

	if err := h.store.Cycles().Upsert(r.Context(), cycle); err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (h *handlers) CycleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cycle, err := h.store.Cycles().Get(r.Context(), id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if cycle == nil {
		writeNotFound(w, r, "cycle_not_found", "no cycle with that id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycle":    cycle,
		"hit_rate": cycle.HitRate(),
	})
}
