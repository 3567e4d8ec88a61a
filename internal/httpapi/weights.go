package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sawpanic/confluence/internal/domain"
)

func (h *handlers) GetWeights(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.WeightProfiles().Active(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if profile == nil {
		writeDegraded(w, r, "no active weight profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type postWeightsRequest struct {
	Name    string                   `json:"name"`
	Weights map[domain.Layer]float64 `json:"weights"`
}

// PostWeights stages and activates a new weight profile. Spec §6.1 requires
// a 422 when the submitted weights don't sum to 1 within tolerance.
func (h *handlers) PostWeights(w http.ResponseWriter, r *http.Request) {
	var req postWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "malformed_body", "request body is not valid JSON")
		return
	}
	if err := domain.ValidateWeightSum(req.Weights); err != nil {
		writeUnprocessable(w, r, "weight_sum_invalid", err.Error())
		return
	}

	name := req.Name
	if name == "" {
		name = "api-update"
	}
	profile := domain.WeightProfile{ID: uuid.NewString(), Name: name, Weights: req.Weights, Active: true}
	if err := h.store.WeightProfiles().Upsert(r.Context(), profile); err != nil {
		writeInternal(w, r, err)
		return
	}
	if err := h.store.WeightProfiles().Activate(r.Context(), profile.ID); err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
