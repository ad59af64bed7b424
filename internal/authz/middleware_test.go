// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package authz

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/meshguard/internal/auth"
)

// mockEnforcer implements RoleEnforcer for testing
type mockEnforcer struct {
	err error
}

func (m *mockEnforcer) Enforce(role, object, action string) (bool, error) {
	return false, m.err
}

func TestMiddleware_Authorize(t *testing.T) {
	t.Parallel()
	e, err := NewEnforcer(Config{})
	if err != nil {
		t.Fatal(err)
	}
	mw := NewMiddleware(e)

	tests := []struct {
		name       string
		claims     *auth.Claims
		object     string
		action     string
		wantStatus int
	}{
		{"viewer reads", &auth.Claims{Username: "v", Role: auth.RoleViewer}, ObjectFlows, ActionRead, http.StatusOK},
		{"viewer writes", &auth.Claims{Username: "v", Role: auth.RoleViewer}, ObjectFlows, ActionWrite, http.StatusForbidden},
		{"operator acks", &auth.Claims{Username: "o", Role: auth.RoleOperator}, ObjectHistory, ActionAcknowledge, http.StatusOK},
		{"admin reloads", &auth.Claims{Username: "a", Role: auth.RoleAdmin}, ObjectEngine, ActionReload, http.StatusOK},
		{"no claims", nil, ObjectFlows, ActionRead, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			called := false
			h := mw.Authorize(tt.object, tt.action)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(auth.WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler called = %v", called)
			}
		})
	}
}

func TestMiddleware_EnforcerError(t *testing.T) {
	t.Parallel()
	mw := NewMiddleware(&mockEnforcer{err: errors.New("model broken")})
	h := mw.Authorize(ObjectFlows, ActionRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Role: auth.RoleAdmin}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
