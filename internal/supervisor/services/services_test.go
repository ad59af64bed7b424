// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockRunner implements Runner for testing.
type mockRunner struct {
	runErr   error
	runCount atomic.Int32
}

func (m *mockRunner) RunWithContext(ctx context.Context) error {
	m.runCount.Add(1)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestServices_Interface(t *testing.T) {
	var _ suture.Service = (*RunnerService)(nil)
	var _ suture.Service = (*SubscriptionService)(nil)
}

func TestRunnerService_Serve(t *testing.T) {
	t.Parallel()

	t.Run("returns context error on cancellation", func(t *testing.T) {
		t.Parallel()
		runner := &mockRunner{}
		svc := NewRunnerService("dispatcher", runner)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Serve did not return after cancel")
		}
		if runner.runCount.Load() != 1 {
			t.Errorf("expected 1 run, got %d", runner.runCount.Load())
		}
	})

	t.Run("propagates runner error", func(t *testing.T) {
		t.Parallel()
		want := errors.New("boom")
		svc := NewRunnerService("mmip-publisher", &mockRunner{runErr: want})
		if err := svc.Serve(context.Background()); !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
	})

	t.Run("name", func(t *testing.T) {
		t.Parallel()
		if got := NewRunnerService("websocket-hub", &mockRunner{}).String(); got != "websocket-hub" {
			t.Errorf("String() = %q", got)
		}
	})
}

func TestSubscriptionService_Serve(t *testing.T) {
	t.Parallel()

	var attached, detached atomic.Int32
	svc := NewSubscriptionService("engine-subscription",
		func() { attached.Add(1) },
		func() { detached.Add(1) })

	if svc.String() != "engine-subscription" {
		t.Errorf("String() = %q", svc.String())
	}

	for round := 1; round <= 2; round++ {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		deadline := time.Now().Add(time.Second)
		for attached.Load() < int32(round) && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if detached.Load() != int32(round-1) {
			t.Fatalf("round %d: detached before cancel", round)
		}
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Serve did not return after cancel")
		}
		if attached.Load() != int32(round) || detached.Load() != int32(round) {
			t.Errorf("round %d: attached=%d detached=%d", round, attached.Load(), detached.Load())
		}
	}
}
