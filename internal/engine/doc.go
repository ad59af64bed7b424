// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package engine evaluates alerting flows against normalized sensor events
// and turns matches into dispatched firings.
//
// Event Flow:
//
//	eventbus -> Engine.HandleEvent -> object state update
//	                 |
//	                 v
//	          per enabled flow: trigger -> condition graph -> cooldown gate
//	                 |
//	                 v
//	          dispatch.Job -> Dispatcher -> HistoryRecorder (alert record)
//
// Condition graphs are evaluated pull-style from the action nodes back to
// the trigger. Every node has one of three states for an event: pass,
// fail or unreached. Ordinary conditions run only when a predecessor
// passed; logic nodes combine their inputs, and an unreached input keeps
// a NOT from passing. Each node is evaluated at most once per event.
//
// Per-object memory (detections, zone membership), cooldowns, duration
// timers and rate-limit logs are shared by all flows and live in sharded
// in-memory tables. Cooldowns are persisted through CooldownStore so a
// restart does not re-fire suppressed alerts.
//
// DryRun evaluates an unsaved flow on scratch tables and reports per-node
// results without touching live state.
//
// Service is the administrative surface used by the HTTP API and flowctl.
package engine
