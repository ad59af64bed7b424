// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package audit keeps a queryable trail of operator actions on the admin API.

Every flow create, update, delete, enable and disable, alert
acknowledgement, template instantiation and engine reload becomes an
Event naming the actor, the target and the outcome. The API handler
queues events on a Logger, which writes them to a Store from a single
background goroutine:

	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil {
		return err
	}
	trail := audit.NewLogger(store, cfg.Audit)
	defer trail.Close()

DuckDBStore shares the application database. MemoryStore is a bounded
ring used when persistence is disabled.

Logger.RunWithContext prunes events older than RetentionDays and runs as
a supervised service. GET /api/v1/audit serves Query to admins.
*/
package audit
