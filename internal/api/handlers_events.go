// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/sync"
)

type userEventRequest struct {
	Event    string `json:"event" validate:"required"`
	UserID   int64  `json:"userid" validate:"required,gt=0"`
	Username string `json:"username"`
}

// handleUserEvent serves POST /api/v1/events/user, the webhook through
// which the site delivers user lifecycle events. Delivery failures to
// the platform are absorbed by the sync layer (records stay pending), so
// the webhook acknowledges as long as the event itself was processable.
func (h *Handler) handleUserEvent(w http.ResponseWriter, r *http.Request) {
	var req userEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Malformed JSON body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ev := models.UserLifecycleEvent{
		Kind:     models.EventKind(req.Event),
		UserID:   req.UserID,
		Username: req.Username,
	}

	start := time.Now()
	if err := h.bridge.HandleUserEvent(r.Context(), ev); err != nil {
		if errors.Is(err, sync.ErrUnknownEvent) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"Unknown event kind", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR",
			"Failed to process event", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"event":  req.Event,
		"userid": req.UserID,
	}, time.Since(start))
}
