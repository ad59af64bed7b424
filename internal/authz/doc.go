// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package authz maps API roles to permissions with Casbin.

The model is plain RBAC over (role, object, action). Objects are the API
resource groups (flows, history, templates, engine, audit); actions are read,
write, test, acknowledge and reload. The embedded policy grants:

	viewer    read on everything
	operator  viewer + acknowledge history + test flows
	admin     everything

Set authz.policy_path to a casbin CSV file to replace the embedded
policy; POST /api/v1/engine/reload re-reads it.

Routes wrap handlers with Middleware.Authorize after authentication:

	r.With(authz.Authorize(authz.ObjectHistory, authz.ActionAcknowledge)).
		Post("/history/{id}/ack", h.AcknowledgeAlert)

Every decision increments meshguard_authz_decisions_total.
*/
package authz
