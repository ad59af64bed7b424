// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package services adapts Meshguard components to suture.Service.

Components that already implement Serve (api.Server, spool.Spool,
eventprocessor.Ingest) are added to the tree directly. The wrappers here
cover the two remaining lifecycle shapes:

  - RunnerService: components with RunWithContext(ctx) error
  - SubscriptionService: attach/detach pairs for event bus handlers

Both return ctx.Err() on shutdown so suture treats the stop as normal.
*/
package services
