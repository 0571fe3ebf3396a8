// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api exposes the service's HTTP surface: the analytics and
// profile-update RPC operations, the user lifecycle webhook, the sync
// operator endpoints, health checks and Prometheus metrics.
package api

import (
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/analytics"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/database"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/profile"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/sync"
)

// Handler bundles the services behind the HTTP endpoints.
type Handler struct {
	db        *database.DB
	analytics *analytics.Service
	profile   *profile.Service
	bridge    *sync.Bridge
	manager   *sync.Manager
}

// NewHandler wires the handler to its services.
func NewHandler(db *database.DB, analyticsSvc *analytics.Service, profileSvc *profile.Service,
	bridge *sync.Bridge, manager *sync.Manager) *Handler {
	return &Handler{
		db:        db,
		analytics: analyticsSvc,
		profile:   profileSvc,
		bridge:    bridge,
		manager:   manager,
	}
}
