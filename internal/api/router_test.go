// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/authz"
	"github.com/tomtom215/meshguard/internal/middleware"
	"github.com/tomtom215/meshguard/internal/models"
)

type testRouter struct {
	http.Handler
	tokens *auth.JWTManager
	svc    *mockService
}

func newTestRouter(t *testing.T, mode auth.Mode, cfg Config) *testRouter {
	t.Helper()
	tokens, err := auth.NewJWTManager(strings.Repeat("k", auth.MinSecretLength), time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	enforcer, err := authz.NewEnforcer(authz.Config{})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	svc := newMockService()
	h := NewHandler(svc, cfg)
	router := NewRouter(cfg, RouterDeps{
		Handler: h,
		Authn:   auth.NewMiddleware(mode, tokens),
		Authz:   authz.NewMiddleware(enforcer),
		Metrics: http.NotFoundHandler(),
	})
	return &testRouter{Handler: router, tokens: tokens, svc: svc}
}

func (tr *testRouter) request(t *testing.T, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5000"
	if role != "" {
		tok, _, err := tr.tokens.GenerateToken(role+"-user", role)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	tr.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RoleAccess(t *testing.T) {
	t.Parallel()
	tr := newTestRouter(t, auth.ModeJWT, DefaultConfig())
	event := `{"event":{"event_type":"drone.detected","object_type":"drone"}}`

	tests := []struct {
		name   string
		method string
		path   string
		role   string
		body   string
		want   int
	}{
		{"no token", http.MethodGet, "/api/v1/flows", "", "", http.StatusUnauthorized},
		{"viewer lists flows", http.MethodGet, "/api/v1/flows", auth.RoleViewer, "", http.StatusOK},
		{"viewer reads flow", http.MethodGet, "/api/v1/flows/flow_a", auth.RoleViewer, "", http.StatusOK},
		{"viewer cannot create", http.MethodPost, "/api/v1/flows", auth.RoleViewer, `{"name":"x"}`, http.StatusForbidden},
		{"viewer cannot test", http.MethodPost, "/api/v1/flows/flow_a/test", auth.RoleViewer, event, http.StatusForbidden},
		{"viewer cannot ack", http.MethodPost, "/api/v1/history/1/ack", auth.RoleViewer, "", http.StatusForbidden},
		{"viewer reads history", http.MethodGet, "/api/v1/history", auth.RoleViewer, "", http.StatusOK},
		{"viewer reads templates", http.MethodGet, "/api/v1/templates", auth.RoleViewer, "", http.StatusOK},
		{"viewer reads stats", http.MethodGet, "/api/v1/engine/stats", auth.RoleViewer, "", http.StatusOK},
		{"operator tests", http.MethodPost, "/api/v1/flows/flow_a/test", auth.RoleOperator, event, http.StatusOK},
		{"operator acks", http.MethodPost, "/api/v1/history/1/ack", auth.RoleOperator, "", http.StatusOK},
		{"operator cannot disable", http.MethodPost, "/api/v1/flows/flow_a/disable", auth.RoleOperator, "", http.StatusForbidden},
		{"operator cannot reload", http.MethodPost, "/api/v1/engine/reload", auth.RoleOperator, "", http.StatusForbidden},
		{"operator cannot read audit", http.MethodGet, "/api/v1/audit", auth.RoleOperator, "", http.StatusForbidden},
		{"admin reloads", http.MethodPost, "/api/v1/engine/reload", auth.RoleAdmin, "", http.StatusOK},
		{"admin patches", http.MethodPatch, "/api/v1/flows/flow_a", auth.RoleAdmin, `{"description":"d"}`, http.StatusOK},
		{"admin from template", http.MethodPost, "/api/v1/templates/drone_alert/flows", auth.RoleAdmin, `{"name":"t"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := tr.request(t, tt.method, tt.path, tt.role, tt.body)
			if rec.Code != tt.want {
				t.Errorf("%s %s as %q = %d, want %d: %s", tt.method, tt.path, tt.role, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_PublicRoutes(t *testing.T) {
	t.Parallel()
	tr := newTestRouter(t, auth.ModeJWT, DefaultConfig())

	rec := tr.request(t, http.MethodGet, "/api/v1/health/live", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("response has no request id")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if !strings.Contains(rec.Body.String(), rec.Header().Get(middleware.RequestIDHeader)) {
		t.Error("envelope metadata does not carry the request id")
	}

	if rec := tr.request(t, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("metrics handler not mounted: %d", rec.Code)
	}
	if rec := tr.request(t, http.MethodPost, "/api/v1/auth/login", "", `{}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("login without handler = %d, want 401 from the authenticated group", rec.Code)
	}
}

func TestRouter_ModeNoneActsAsAdmin(t *testing.T) {
	t.Parallel()
	tr := newTestRouter(t, auth.ModeNone, DefaultConfig())

	rec := tr.request(t, http.MethodPost, "/api/v1/history/9/ack", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ack = %d: %s", rec.Code, rec.Body.String())
	}
	if tr.svc.ackBy != "anonymous" {
		t.Errorf("acknowledged by %q, want anonymous", tr.svc.ackBy)
	}
	if rec := tr.request(t, http.MethodDelete, "/api/v1/flows/flow_a", "", ""); rec.Code != http.StatusOK {
		t.Errorf("delete = %d", rec.Code)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Hour
	tr := newTestRouter(t, auth.ModeNone, cfg)

	for i := 0; i < 2; i++ {
		if rec := tr.request(t, http.MethodGet, "/api/v1/flows", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := tr.request(t, http.MethodGet, "/api/v1/flows", "", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), models.ErrCodeRateLimited) {
		t.Errorf("429 body = %s", rec.Body.String())
	}
	if rec := tr.request(t, http.MethodGet, "/api/v1/health/live", "", ""); rec.Code != http.StatusOK {
		t.Errorf("health is rate limited: %d", rec.Code)
	}
}

func TestRouter_LoginRoute(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.LoginRateLimit = 1
	tokens, _ := auth.NewJWTManager(strings.Repeat("k", auth.MinSecretLength), time.Hour)
	enforcer, _ := authz.NewEnforcer(authz.Config{})
	login := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	router := NewRouter(cfg, RouterDeps{
		Handler: NewHandler(newMockService(), cfg),
		Authn:   auth.NewMiddleware(auth.ModeJWT, tokens),
		Authz:   authz.NewMiddleware(enforcer),
		Login:   login,
	})

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	if got := send(); got != http.StatusNoContent {
		t.Fatalf("first login = %d", got)
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Errorf("second login = %d, want 429", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Port = -1 }, false},
		{"port range", func(c *Config) { c.Port = 70000 }, true},
		{"rate limit", func(c *Config) { c.RateLimitRequests = 0 }, true},
		{"rate limit disabled", func(c *Config) { c.RateLimitRequests = 0; c.RateLimitDisabled = true }, false},
		{"login limit", func(c *Config) { c.LoginRateLimit = -1 }, true},
		{"body limit", func(c *Config) { c.MaxBodyBytes = 0 }, true},
		{"shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if got := DefaultConfig().Addr(); got != "127.0.0.1:8089" {
		t.Errorf("Addr() = %q", got)
	}
}
