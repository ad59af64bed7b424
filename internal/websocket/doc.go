// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package websocket pushes live alerts to operator consoles.

A single Hub owns the set of connected clients. The ui_alert action calls
Hub.BroadcastJSON with an alert_fired payload; the admin API announces
acknowledgements and flow reloads the same way.

	ui_alert sink ──BroadcastJSON──> Hub ──> Client.send ──> writePump ──> browser
	                                  ^
	                     Register / Unregister (HTTP upgrade, readPump exit)

Message types:

  - alert_fired: an alert passed its cooldown and was dispatched
  - alert_acknowledged: one alert, or a batch, was acknowledged
  - flows_reloaded: the active flow set changed
  - ping / pong: console keepalive

Broadcasts never block. When the hub queue is full the message is
dropped; when one client's buffer is full that client is disconnected.
Both count towards meshguard_websocket_messages_dropped_total.

The hub is a suture service: RunWithContext returns when its context is
canceled and closes every client on the way out.
*/
package websocket
