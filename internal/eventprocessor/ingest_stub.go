// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

//go:build !nats

package eventprocessor

import (
	"context"
	"errors"
)

// Available reports whether the binary was built with NATS support.
const Available = false

// ErrNATSNotEnabled is returned when NATS ingest is requested from a
// binary built without -tags=nats.
var ErrNATSNotEnabled = errors.New("NATS support not compiled in; rebuild with -tags=nats")

// Ingest is a placeholder when NATS dependencies are not compiled in.
type Ingest struct{}

// NewIngest always fails in this build.
func NewIngest(Config, EventPublisher) (*Ingest, error) {
	return nil, ErrNATSNotEnabled
}

// String names the service in supervisor logs.
func (i *Ingest) String() string { return "nats-ingest" }

// Serve always fails in this build.
func (i *Ingest) Serve(context.Context) error {
	return ErrNATSNotEnabled
}
