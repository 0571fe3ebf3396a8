// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/auth"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/metrics"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// ClaimsFromContext returns the validated token claims stored by the
// capability middleware, or nil outside an authenticated route.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// requireCapability validates the bearer token and checks the route's
// required capability. A missing or bad token is a hard 401; a valid
// token without the capability is a hard 403. Handlers never run for
// unauthorized callers.
func requireCapability(jwtManager *auth.JWTManager, capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
					"Missing or malformed Authorization header", nil)
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
					"Invalid or expired token", err)
				return
			}

			if !claims.HasCapability(capability) {
				respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR",
					"Insufficient permissions", nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdmin guards the operator endpoints.
func requireAdmin(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
					"Missing or malformed Authorization header", nil)
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR",
					"Invalid or expired token", err)
				return
			}
			if !claims.Admin {
				respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR",
					"Admin access required", nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// statusRecorder captures the response status for the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestMetrics records per-endpoint request counts and latency.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordAPIRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
