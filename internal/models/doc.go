// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package models defines the data structures shared across Meshguard.

Key Components:

  - Event: the normalized, immutable envelope produced by ingestion collaborators
  - FlowDefinition, Node, Edge: the persisted shape of an alerting flow graph
  - AlertRecord: one fired flow, with the per-action results of its dispatch
  - AlertFilter, AlertStats: history query and summary models
  - CooldownRecord: persisted flow/object suppression state

Model Categories:

1. Wire Models:
  - Event and Location are decoded from JSON (NATS, HTTP, CLI) and never
    mutated after publish. Derived values live in the evaluation scratch space.

2. Configuration Models:
  - FlowDefinition accepts both the canonical "subtype" node key and the
    legacy trigger_type/condition_type/action_type keys.

3. History Models:
  - AlertRecord is immutable after creation except for acknowledgement.

Value Coercion:

Event data arrives as map[string]any decoded from JSON, so numbers may be
float64, json.Number, or numeric strings. ToFloat, ToString and ToBool give
every consumer the same coercion rules.
*/
package models
