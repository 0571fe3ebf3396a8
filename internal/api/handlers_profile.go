// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/profile"
)

type updateProfilesRequest struct {
	Users []models.ProfileEdit `json:"users" validate:"required,min=1,dive"`
}

type updateProfilesResponse struct {
	Warnings []models.Warning `json:"warnings"`
}

// handleUpdateProfiles serves POST /api/v1/users/profile. The response is
// always 200 with a warnings array; per-item failures never fail the
// batch.
func (h *Handler) handleUpdateProfiles(w http.ResponseWriter, r *http.Request) {
	var req updateProfilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Malformed JSON body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
			"Missing authentication context", nil)
		return
	}
	caller := profile.Caller{UserID: claims.UserID, Admin: claims.Admin}

	start := time.Now()
	warnings := h.profile.UpdateProfiles(r.Context(), caller, req.Users)

	respondJSON(w, http.StatusOK, updateProfilesResponse{Warnings: warnings}, time.Since(start))
}
