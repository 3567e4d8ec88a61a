// Package httpapi exposes the read-only HTTP surface over the confluence
// store, grounded on the teacher's internal/interfaces/http package (mux
// router, middleware chain, responseWrapper, writeJSON/writeError helpers)
// but serving signal-fusion data instead of momentum candidates.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the wire shape for every non-2xx response (spec §6.2).
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(requestIDKey{}).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

// Error taxonomy helpers (spec §6.2): each maps one semantic failure class
// to its wire status so handlers never pick a status code ad hoc.
func writeBadRequest(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(w, r, http.StatusBadRequest, code, message)
}

func writeNotFound(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(w, r, http.StatusNotFound, code, message)
}

func writeConflict(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(w, r, http.StatusConflict, code, message)
}

func writeUnprocessable(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(w, r, http.StatusUnprocessableEntity, code, message)
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
}

// writeDegraded maps a stale/unavailable upstream producer to 503, per the
// "transient I/O / stale input" taxonomy in spec §7.
func writeDegraded(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusServiceUnavailable, "degraded", message)
}
