// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/meshguard/internal/models"
)

func echoRole() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ClaimsFromContext(r.Context())
		if c == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(c.Username + "/" + c.Role))
	})
}

func TestMiddleware_Authenticate(t *testing.T) {
	t.Parallel()
	m := newTestJWT(t)
	token, _, _ := m.GenerateToken("alice", RoleViewer)
	h := NewMiddleware(ModeJWT, m).Authenticate(echoRole())

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
		wantBody string
	}{
		{"bearer header", "Bearer " + token, "", http.StatusOK, "alice/viewer"},
		{"lowercase scheme", "bearer " + token, "", http.StatusOK, "alice/viewer"},
		{"query token", "", "?access_token=" + token, http.StatusOK, "alice/viewer"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic YWxpY2U6eA==", "", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/flows"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantCode == http.StatusUnauthorized {
				var resp models.APIResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == nil || resp.Error.Code != models.ErrCodeUnauthorized {
					t.Errorf("error body = %s", rec.Body.String())
				}
				if rec.Header().Get("WWW-Authenticate") == "" {
					t.Error("missing WWW-Authenticate")
				}
			}
		})
	}
}

func TestMiddleware_ModeNone(t *testing.T) {
	t.Parallel()
	h := NewMiddleware(ModeNone, nil).Authenticate(echoRole())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() != "anonymous/admin" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestLoginHandler(t *testing.T) {
	t.Parallel()
	hash, _ := HashPassword("operator-pass", bcrypt.MinCost)
	users := NewUserStore([]User{{Username: "ops", PasswordHash: hash, Role: RoleOperator}})
	tokens := newTestJWT(t)
	h := NewLoginHandler(users, tokens, NewLockout(2, time.Minute))

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"username":"ops","password":"operator-pass"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := tokens.ValidateToken(resp.Data.Token)
	if err != nil || claims.Role != RoleOperator || resp.Data.TokenType != "Bearer" {
		t.Errorf("issued token = %+v, %v", resp.Data, err)
	}

	if rec := post(`{"username":"ops"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing password status = %d", rec.Code)
	}
	if rec := post(`{"username":"ops","password":"wrong-pass"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", rec.Code)
	}
	_ = post(`{"username":"ops","password":"wrong-pass"}`)

	rec = post(`{"username":"ops","password":"operator-pass"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locked status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}
