// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package main is the entry point for the Meshguard alerting server.

Meshguard evaluates user-defined flows against surveillance events (drones,
aircraft, vessels, lightning, weather, system feeds) and dispatches alerts
to the operator console, Telegram, webhooks, MQTT and a local sound
command.

# Application Architecture

	meshguard (root)
	├── core-layer
	│   ├── dispatcher           action worker pool
	│   ├── engine-maintenance   state pruning, history retention
	│   ├── engine-subscription  bus handler for every event
	│   ├── history-spool        badger replay (optional)
	│   └── audit-retention      audit trail pruning (optional)
	├── messaging-layer
	│   ├── websocket-hub        operator console push
	│   ├── mmip-publisher       MMIP/1.0 heartbeat and queue (optional)
	│   ├── mmip-subscription    detection forwarding (optional)
	│   └── nats-ingest          JetStream event ingest (optional, -tags nats)
	└── api-layer
	    └── api-server           admin REST API

Component initialization order:

 1. Configuration: koanf v2 (defaults, YAML file, environment)
 2. Logging: zerolog
 3. Storage: DuckDB, the optional badger spool and the audit trail
 4. MQTT: shared broker connection
 5. Engine: zones, dispatcher and sinks, flow registry, cooldown restore
 6. MMIP and NATS ingest
 7. Admin API: JWT authentication, casbin authorization, chi router
 8. Supervisor tree

# Configuration

	LOG_LEVEL=info               # trace, debug, info, warn, error
	MESHGUARD_DB_PATH=data/meshguard.duckdb
	STATION_LAT=55.86 STATION_LON=-4.25
	TELEGRAM_BOT_TOKEN=... TELEGRAM_CHAT_ID=...
	MQTT_ENABLED=true MQTT_BROKER=tcp://localhost:1883
	MMIP_ENABLED=true MMIP_SOURCE_ID=station-1
	NATS_ENABLED=true            # requires -tags nats
	AUTH_MODE=jwt JWT_SECRET=<32+ chars>

Zones in the config file are reloaded when the file changes. Every other
setting requires a restart.

# Build Tags

	go build ./cmd/server                # no NATS ingest
	go build -tags nats ./cmd/server     # embedded JetStream ingest

# Signal Handling

SIGINT and SIGTERM cancel the tree. The dispatcher drains queued jobs,
queued audit events are flushed, the spool and database are closed, and services that miss the shutdown
timeout are reported.
*/
package main
