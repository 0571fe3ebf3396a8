// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/analytics"
)

// handleGetAnalytics serves GET /api/v1/analytics?course_id=N. A zero or
// absent course_id selects the all-courses snapshot.
func (h *Handler) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	courseID, err := getInt64Query(r, "course_id", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if courseID < 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"course_id must not be negative", nil)
		return
	}

	start := time.Now()
	snapshot, err := h.analytics.GetAnalytics(r.Context(), courseID)
	if err != nil {
		if errors.Is(err, analytics.ErrCourseNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Course not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR",
			"Failed to compute analytics", err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot, time.Since(start))
}
