// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

//go:build !nats

package eventprocessor

import (
	"context"
	"errors"
	"testing"
)

func TestIngestStub(t *testing.T) {
	t.Parallel()
	if Available {
		t.Fatal("Available = true in a build without nats")
	}
	if _, err := NewIngest(DefaultConfig(), &mockPublisher{}); !errors.Is(err, ErrNATSNotEnabled) {
		t.Errorf("NewIngest() error = %v, want ErrNATSNotEnabled", err)
	}
	if err := (&Ingest{}).Serve(context.Background()); !errors.Is(err, ErrNATSNotEnabled) {
		t.Errorf("Serve() error = %v, want ErrNATSNotEnabled", err)
	}
}
