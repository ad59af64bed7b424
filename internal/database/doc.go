// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package database persists flows, alert history and cooldown state in DuckDB.

The schema is created on first open and upgraded through numbered
migrations recorded in schema_migrations. Flow graphs are stored as JSON
text so that extension autoloading can stay disabled.

# Tables

  - flows: flow definitions plus fire statistics
  - alert_history: one row per completed dispatch job
  - flow_cooldowns: last fire per (flow, object) for restart recovery

Every query is timed into the meshguard_duckdb_query_duration_seconds
histogram through observe.

# Usage

	db, err := database.New(database.Config{Path: "data/meshguard.duckdb"})
	if err != nil {
		return err
	}
	defer db.Close()

	flows, err := db.ListFlows(ctx)
*/
package database
