// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package supervisor runs Meshguard's long-lived services under a suture v4
supervisor tree.

# Tree Layout

	meshguard (root)
	├── core-layer
	│   ├── engine-subscription
	│   ├── engine-maintenance
	│   ├── dispatcher
	│   ├── history-spool
	│   └── audit-retention
	├── messaging-layer
	│   ├── nats-ingest
	│   ├── mmip-publisher
	│   ├── mmip-subscription
	│   └── websocket-hub
	└── api-layer
	    └── api-server

Each layer restarts its own services with exponential backoff. A crashing
broker connection in the messaging layer never restarts the engine.

# Logging

Supervisor events (restarts, backoff, panics) are logged through
sutureslog into the zerolog-backed slog handler from internal/logging.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	tree.AddCoreService(services.NewRunnerService("dispatcher", disp))
	tree.AddAPIService(apiServer)
	err = tree.Serve(ctx)

See the services subpackage for the lifecycle adapters.
*/
package supervisor
