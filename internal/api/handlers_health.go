// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"
)

// handleHealthLive reports process liveness.
func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"}, 0)
}

// handleHealthReady reports readiness: the database must answer.
func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR",
			"Database not reachable", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"}, time.Since(start))
}

// handleHealth is the combined health endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.handleHealthReady(w, r)
}
