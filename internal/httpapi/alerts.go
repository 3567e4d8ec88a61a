package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sawpanic/confluence/internal/domain"
)

func (h *handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	status := domain.AlertStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.AlertActive
	}
	switch status {
	case domain.AlertActive, domain.AlertAcknowledged, domain.AlertDismissed:
	default:
		writeBadRequest(w, r, "invalid_status", "status must be active, acknowledged, or dismissed")
		return
	}

	alerts, err := h.store.Alerts().ListByStatus(r.Context(), status)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": status, "count": len(alerts), "data": alerts})
}

func (h *handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := h.store.Alerts().Get(r.Context(), id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if existing == nil {
		writeNotFound(w, r, "alert_not_found", "no alert with that id")
		return
	}
	if err := h.store.Alerts().SetStatus(r.Context(), id, domain.AlertAcknowledged); err != nil {
		writeInternal(w, r, err)
		return
	}
	existing.Status = domain.AlertAcknowledged
	writeJSON(w, http.StatusOK, existing)
}
