// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package metrics provides Prometheus instrumentation for the alerting pipeline.

# Overview

The package provides metrics for:
  - Event bus throughput by event category
  - Flow evaluation latency, firings and gate suppressions
  - Node evaluation errors and state resets
  - Action dispatch latency and outcome by sink
  - Alert history writes and DuckDB query performance
  - Admin API latency and WebSocket console connections
  - MMIP envelope publishing

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format when the API
server is enabled:

	curl http://localhost:8089/metrics

All collectors are registered with the default registry via promauto, so
recording helpers are safe to call from any goroutine.
*/
package metrics
