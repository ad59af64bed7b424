// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package authz

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
)

// RoleEnforcer is the decision point the middleware consults.
type RoleEnforcer interface {
	Enforce(role, object, action string) (bool, error)
}

// Middleware guards routes by role.
type Middleware struct {
	enforcer RoleEnforcer
}

// NewMiddleware creates the authorization middleware.
func NewMiddleware(enforcer RoleEnforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Authorize returns chi-compatible middleware that admits the request
// only when the caller's role may perform action on object. It must run
// after auth.Middleware.Authenticate.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "authentication required")
				return
			}

			allowed, err := m.enforcer.Enforce(claims.Role, object, action)
			if err != nil {
				logging.Error().Err(err).Str("role", claims.Role).Msg("Authorization error")
				writeError(w, http.StatusInternalServerError, models.ErrCodeInternal, "authorization failed")
				return
			}
			metrics.RecordAuthz(claims.Role, object, action, allowed)
			if !allowed {
				logging.Debug().
					Str("username", claims.Username).
					Str("role", claims.Role).
					Str("object", object).
					Str("action", action).
					Msg("Request denied")
				writeError(w, http.StatusForbidden, models.ErrCodeForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	data, err := json.Marshal(models.NewErrorResponse(code, message))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
