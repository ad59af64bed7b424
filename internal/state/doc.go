// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package state holds the engine's mutable in-memory tables.

# Tables

  - ObjectTracker: per object_id lifecycle (first/last seen, detection
    count, zone membership)
  - CooldownTable: per (flow_id, object_id|"_global") last fire time
  - DurationTimers: per (flow_id, object_id, node_id) start time with
    reset-on-break
  - RateLimiter: per (flow_id, node_id, object_id|"_global") sliding log of
    pass timestamps

# Concurrency

Every table is a fixed set of shards selected by FNV-1a hash of the
composite key, each guarded by its own mutex. Unrelated objects and flows
never contend on a single global lock, and all updates for one key are
serialized under that key's shard lock, so per-object updates apply in
arrival order.

Times are supplied by the caller. The engine passes the event timestamp so
replayed streams evaluate the same way live ones do.
*/
package state
