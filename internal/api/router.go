// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/auth"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/config"
)

// NewRouter assembles the chi router: shared middleware, public health
// and metrics endpoints, and the capability-guarded API groups.
func NewRouter(h *Handler, jwtManager *auth.JWTManager, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !cfg.Security.RateLimitDisabled {
		r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
	}

	// Public endpoints.
	r.Get("/api/v1/health", h.handleHealth)
	r.Get("/api/v1/health/live", h.handleHealthLive)
	r.Get("/api/v1/health/ready", h.handleHealthReady)
	r.Handle("/metrics", promhttp.Handler())

	// Capability-guarded API. Each group carries exactly the capability
	// its operation requires.
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireCapability(jwtManager, auth.CapView))
			r.Get("/analytics", h.handleGetAnalytics)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireCapability(jwtManager, auth.CapUpdateProfile))
			r.Post("/users/profile", h.handleUpdateProfiles)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireCapability(jwtManager, auth.CapEvents))
			r.Post("/events/user", h.handleUserEvent)
		})

		// Operator endpoints.
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(jwtManager))
			r.Post("/sync/trigger", h.handleSyncTrigger)
			r.Get("/sync/status", h.handleSyncStatus)
		})
	})

	return r
}
