// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package mmip publishes detections, fired alerts and a status heartbeat
// in Mesh Mapper Interchange Protocol (MMIP/1.0) envelopes:
//
//	{"protocol":"mmip","version":"1.0","source_id":"...","timestamp":"...","type":"...","payload":{...}}
//
// Topics are mmip/{source_id}/detections, mmip/{source_id}/alerts and
// mmip/{source_id}/status. Detections come from the event bus, alerts from
// the dispatcher's observer hook. Both are queued and published from
// RunWithContext so a slow broker never stalls the bus or the dispatcher.
package mmip
