// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"
)

// handleSyncTrigger serves POST /api/v1/sync/trigger: one synchronous
// reconciliation sweep, returning its result. The sweep serializes with
// the scheduled loop, so a concurrent trigger simply waits.
func (h *Handler) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, err := h.manager.Sweep(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR",
			"Sweep failed", err)
		return
	}
	respondJSON(w, http.StatusOK, result, time.Since(start))
}

// handleSyncStatus serves GET /api/v1/sync/status.
func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondJSON(w, http.StatusOK, h.manager.Status(r.Context()), time.Since(start))
}
