// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package models

import (
	"time"
)

// APIResponse is the standardized envelope used by every HTTP endpoint.
//
// Status is "success" or "error". Data carries the payload on success;
// Error is populated only on failure.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error body.
//
// Common codes: VALIDATION_ERROR, AUTHENTICATION_ERROR, AUTHORIZATION_ERROR,
// NOT_FOUND, DATABASE_ERROR, SYNC_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
