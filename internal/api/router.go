// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/authz"
	"github.com/tomtom215/meshguard/internal/middleware"
	"github.com/tomtom215/meshguard/internal/models"
)

// RouterDeps are the collaborators the router mounts.
type RouterDeps struct {
	Handler *Handler
	Authn   *auth.Middleware
	Authz   *authz.Middleware
	// Login serves POST /api/v1/auth/login. Nil leaves the route
	// unregistered, which is the case when auth mode is none.
	Login http.Handler
	// Metrics serves /metrics. Nil uses the default Prometheus registry.
	Metrics http.Handler
}

// NewRouter builds the admin API routes.
func NewRouter(cfg Config, deps RouterDeps) http.Handler {
	h := deps.Handler
	allow := deps.Authz.Authorize

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         86400,
	}))

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	if deps.Login != nil {
		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Use(middleware.SecurityHeaders)
			if cfg.LoginRateLimit > 0 {
				r.Use(rateLimiter(cfg.LoginRateLimit, time.Minute))
			}
			r.Method(http.MethodPost, "/login", deps.Login)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		if !cfg.RateLimitDisabled {
			r.Use(rateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		r.Use(deps.Authn.Authenticate)

		r.Get("/ws", h.WebSocket)

		r.Route("/flows", func(r chi.Router) {
			r.With(allow(authz.ObjectFlows, authz.ActionRead)).Get("/", h.ListFlows)
			r.With(allow(authz.ObjectFlows, authz.ActionWrite)).Post("/", h.CreateFlow)
			r.With(allow(authz.ObjectFlows, authz.ActionTest)).Post("/test", h.TestFlow)

			r.Route("/{id}", func(r chi.Router) {
				r.With(allow(authz.ObjectFlows, authz.ActionRead)).Get("/", h.GetFlow)
				r.Group(func(r chi.Router) {
					r.Use(allow(authz.ObjectFlows, authz.ActionWrite))
					r.Put("/", h.UpdateFlow)
					r.Patch("/", h.UpdateFlow)
					r.Delete("/", h.DeleteFlow)
					r.Post("/enable", h.EnableFlow)
					r.Post("/disable", h.DisableFlow)
				})
				r.With(allow(authz.ObjectFlows, authz.ActionTest)).Post("/test", h.TestStoredFlow)
			})
		})

		r.Route("/history", func(r chi.Router) {
			r.With(allow(authz.ObjectHistory, authz.ActionRead)).Get("/", h.QueryHistory)
			r.With(allow(authz.ObjectHistory, authz.ActionRead)).Get("/stats", h.AlertStats)
			r.With(allow(authz.ObjectHistory, authz.ActionAcknowledge)).Post("/ack-all", h.AcknowledgeAll)
			r.With(allow(authz.ObjectHistory, authz.ActionAcknowledge)).Post("/{id}/ack", h.AcknowledgeAlert)
		})

		r.Route("/templates", func(r chi.Router) {
			r.With(allow(authz.ObjectTemplates, authz.ActionRead)).Get("/", h.ListTemplates)
			r.With(allow(authz.ObjectFlows, authz.ActionWrite)).Post("/{id}/flows", h.CreateFromTemplate)
		})

		r.Route("/engine", func(r chi.Router) {
			r.With(allow(authz.ObjectEngine, authz.ActionRead)).Get("/stats", h.EngineStats)
			r.With(allow(authz.ObjectEngine, authz.ActionReload)).Post("/reload", h.ReloadEngine)
		})

		r.With(allow(authz.ObjectAudit, authz.ActionRead)).Get("/audit", h.QueryAudit)
	})

	return r
}

// rateLimiter limits by client IP and answers with the JSON envelope.
func rateLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded", nil)
		}),
	)
}
