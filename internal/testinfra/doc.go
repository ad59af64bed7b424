// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package testinfra starts real collaborators in Docker for integration
// tests. Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/mqtt/...
//
// # Mosquitto
//
//	broker, err := testinfra.NewMosquittoContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.CleanupContainer(t, broker)
//	client, err := mqtt.Connect(ctx, mqtt.Config{Broker: broker.BrokerURL})
//
// Tests call SkipIfNoDocker first so they pass on machines without a
// daemon.
package testinfra
