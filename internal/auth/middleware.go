// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/models"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// anonymous is attached to every request in ModeNone.
var anonymous = &Claims{Username: "anonymous", Role: RoleAdmin}

// TokenValidator validates bearer tokens. *JWTManager satisfies it.
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// Middleware authenticates admin API requests.
type Middleware struct {
	mode      Mode
	validator TokenValidator
}

// NewMiddleware creates the middleware. validator may be nil in ModeNone.
func NewMiddleware(mode Mode, validator TokenValidator) *Middleware {
	return &Middleware{mode: mode, validator: validator}
}

// Authenticate rejects requests without a valid token and stores the
// claims in the request context. Browsers cannot set headers on a
// websocket upgrade, so the token may also arrive as ?access_token=.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode == ModeNone {
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), anonymous)))
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "authentication required")
			return
		}
		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Str("path", r.URL.Path).Msg("Token rejected")
			writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the authenticated caller, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsContextKey).(*Claims)
	return c
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	data, err := json.Marshal(models.NewErrorResponse(code, message))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="meshguard"`)
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
