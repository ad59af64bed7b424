// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package spool keeps alert history from being lost while DuckDB is
// unavailable.
//
// Spool wraps the database as the engine's history sink. A failed write is
// parked in BadgerDB under a time-ordered key and replayed by Serve, which
// runs under the supervisor's core layer. Entries older than MaxAge are
// dropped on replay. Depth and replay outcomes are exported as
// meshguard_spool_pending and meshguard_spool_replays_total.
package spool
