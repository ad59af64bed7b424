// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package logging provides centralized zerolog-based structured logging.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once from main via Init
//   - JSON output for production, console output for development
//   - Correlation IDs that tie one flow firing's log lines together
//   - An slog adapter so suture's sutureslog hook logs through zerolog
//   - An audit logger for administrative actions with secret redaction
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("flow_id", id).Msg("Flow fired")
//	logging.Err(err).Msg("History write failed")
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Warn().Str("action", "webhook").Msg("Action failed")
//
// # Configuration
//
// Environment Variables (mapped by the config package):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// Node evaluation errors are logged at debug level; action dispatch failures
// are logged at warn level.
package logging
