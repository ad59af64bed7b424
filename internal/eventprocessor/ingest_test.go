// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

//go:build nats

package eventprocessor

import (
	"context"
	"sync"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/meshguard/internal/models"
)

// syncPublisher implements EventPublisher for concurrent tests.
type syncPublisher struct {
	mu     sync.Mutex
	events []*models.Event
}

func (s *syncPublisher) Publish(_ context.Context, ev *models.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *syncPublisher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Port = -1
	cfg.StoreDir = t.TempDir()
	cfg.CloseTimeout = 2 * time.Second
	return cfg
}

func TestEnsureStream_Idempotent(t *testing.T) {
	cfg := testConfig(t)
	srv, err := NewEmbeddedServer(cfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream.New() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := EnsureStream(ctx, js, cfg); err != nil {
			t.Fatalf("EnsureStream() pass %d error = %v", i, err)
		}
	}
	stream, err := js.Stream(ctx, cfg.Stream)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if got := stream.CachedInfo().Config.Subjects; len(got) != 1 || got[0] != "meshguard.events.>" {
		t.Errorf("subjects = %v", got)
	}
}

func TestIngest_ForwardsToBus(t *testing.T) {
	cfg := testConfig(t)
	pub := &syncPublisher{}
	ing, err := NewIngest(cfg, pub)
	if err != nil {
		t.Fatalf("NewIngest() error = %v", err)
	}

	// Point the bridge at a server the test can also publish to.
	srv, err := NewEmbeddedServer(cfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()
	ing.cfg.Embedded = false
	ing.cfg.URL = srv.ClientURL()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Serve(ctx) }()

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer nc.Close()
	js, _ := jetstream.New(nc)

	deadline := time.Now().Add(10 * time.Second)
	for pub.count() == 0 && time.Now().Before(deadline) {
		_, _ = js.Publish(ctx, "meshguard.events.drone", []byte(`{"event_type":"drone.detected","object_id":"AA","object_type":"drone"}`))
		time.Sleep(200 * time.Millisecond)
	}
	cancel()
	<-done

	if pub.count() == 0 {
		t.Fatal("no event reached the bus")
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.events[0].EventType != "drone.detected" {
		t.Errorf("event = %+v", pub.events[0])
	}
}
