// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package flows compiles user-defined alert flows into immutable
// evaluation graphs and keeps the active set in a registry.
//
// Flow Model:
//
//	trigger -> condition(s) -> action(s)
//	   |           |              |
//	   v           v              v
//	 Trigger    Condition     CompiledNode
//
// A flow has exactly one trigger, any number of conditions (including
// AND/OR/NOT logic nodes) and at least one action. Compile rejects flows
// with cycles, dangling edges, unreachable nodes or malformed node
// config, returning a *ConfigurationError that lists every problem.
//
// Registry:
// The registry swaps whole Snapshots behind an atomic pointer. An
// evaluation that started on one snapshot finishes on it even if a reload
// lands mid-flight. Invalid flows are skipped and reported; they never
// prevent other flows from loading.
//
// Templates:
// Built-in templates are embedded as JSON. Instantiate applies the
// template parameters (zone, thresholds, durations, rate limits and
// cooldown) and returns an enabled definition ready to be stored.
package flows
