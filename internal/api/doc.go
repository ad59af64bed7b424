// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package api serves the admin HTTP API over the engine's administrative
operations, using the chi router.

Routes (all under /api/v1 require a bearer token unless auth mode is none):

	GET    /health/live                 liveness, no auth
	GET    /health/ready                readiness checks, no auth
	POST   /auth/login                  issue a token (jwt mode only)
	GET    /flows                       list flows              flows:read
	POST   /flows                       create flow             flows:write
	POST   /flows/test                  dry-run unsaved flow    flows:test
	GET    /flows/{id}                  get flow                flows:read
	PUT    /flows/{id}                  partial update          flows:write
	DELETE /flows/{id}                  delete flow             flows:write
	POST   /flows/{id}/enable|disable   toggle                  flows:write
	POST   /flows/{id}/test             dry-run stored flow     flows:test
	GET    /history                     query alerts            history:read
	GET    /history/stats               24h summary             history:read
	POST   /history/{id}/ack            acknowledge one         history:acknowledge
	POST   /history/ack-all             acknowledge many        history:acknowledge
	GET    /templates                   template catalogue      templates:read
	POST   /templates/{id}/flows        create from template    flows:write
	GET    /engine/stats                engine counters         engine:read
	POST   /engine/reload               reload flows and policy engine:reload
	GET    /audit                       operator action trail   audit:read
	GET    /ws                          console websocket (token via ?access_token=)
	GET    /metrics                     Prometheus exposition (outside /api/v1)

Every response uses the models.APIResponse envelope. Mutations are
written to the audit log, recorded in the audit trail when one is set,
and broadcast to consoles as flows_reloaded or
alert_acknowledged messages.

History filters are query parameters: severity, object_type, object_id,
flow_id, acknowledged, since, until (RFC 3339 or Unix seconds), limit
(default 100, max 1000) and offset. Audit filters are action, actor,
outcome, since, until, limit and offset.
*/
package api
