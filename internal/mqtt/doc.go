// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package mqtt wraps the Eclipse Paho client with context-aware publish
// and subscribe. One Client serves both the mqtt alert action and the
// MMIP publisher.
//
// The client reconnects on its own; connection state is exported as
// meshguard_mqtt_connected. Publish waits for the broker acknowledgement,
// the caller's context, or PublishTimeout, whichever comes first.
package mqtt
