// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package eventprocessor bridges detection collectors on NATS JetStream into
the in-process event bus.

Collectors publish JSON event envelopes to subjects under
meshguard.events.>. Ingest (build tag nats) optionally starts an embedded
JetStream server, provisions the stream, and consumes through a Watermill
subscriber. Each message is decoded by Bridge and published on the bus,
where the engine evaluates it like any locally produced event.

Malformed payloads are acked and counted as
meshguard_ingest_messages_total{result="malformed"} so they are not
redelivered.

# Build Tags

Without -tags=nats, NewIngest returns ErrNATSNotEnabled and Available is
false. Bridge and DecodeEvent are always available.
*/
package eventprocessor
