// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package middleware provides chi-compatible HTTP middleware for the admin API.

  - RequestID: X-Request-ID propagation and logging correlation
  - Metrics: meshguard_api_requests_total and request latency, labelled by
    chi route pattern so path parameters do not explode cardinality
  - SecurityHeaders: nosniff, frame denial, referrer policy, HSTS behind TLS

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)

Authentication and authorization live in the auth and authz packages.
*/
package middleware
