// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package mmip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/eventbus"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/models"
)

type sent struct {
	topic string
	env   map[string]any
}

// mockBroker implements dispatch.Publisher and the connection check for testing.
type mockBroker struct {
	mu           sync.Mutex
	msgs         []sent
	disconnected bool
	err          error
}

func (m *mockBroker) Publish(_ context.Context, topic string, _ byte, _ bool, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	var env map[string]any
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	m.mu.Lock()
	m.msgs = append(m.msgs, sent{topic, env})
	m.mu.Unlock()
	return nil
}

func (m *mockBroker) IsConnected() bool { return !m.disconnected }

func (m *mockBroker) sent() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.msgs...)
}

var fixedNow = time.Date(2026, 2, 12, 17, 50, 0, 0, time.UTC)

func newTestPublisher(b *mockBroker) *Publisher {
	p := New(Config{Enabled: true, SourceID: "pi-kyle"}, b, &geo.Point{Lat: 55.87, Lon: -4.43}, func() map[string]any {
		return map[string]any{"drones": 3}
	})
	p.now = func() time.Time { return fixedNow }
	return p
}

// drain publishes everything queued so far.
func drain(p *Publisher) {
	for {
		select {
		case msg := <-p.queue:
			p.send(context.Background(), msg)
		default:
			return
		}
	}
}

func TestPublisher_DetectionEnvelope(t *testing.T) {
	t.Parallel()

	b := &mockBroker{}
	p := newTestPublisher(b)
	_ = p.HandleDetection(context.Background(), &models.Event{
		EventType: "drone.detected", Source: "wifi", ObjectID: "AA:BB", ObjectType: "drone",
		Location: &models.Location{Lat: 55.8, Lon: -4.4},
	})
	drain(p)

	msgs := b.sent()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].topic != "mmip/pi-kyle/detections" {
		t.Errorf("topic = %q", msgs[0].topic)
	}
	env := msgs[0].env
	for key, want := range map[string]any{
		"protocol": "mmip", "version": "1.0", "source_id": "pi-kyle",
		"type": "detection", "timestamp": "2026-02-12T17:50:00Z",
	} {
		if env[key] != want {
			t.Errorf("envelope[%s] = %v, want %v", key, env[key], want)
		}
	}
	payload := env["payload"].(map[string]any)
	if payload["detection_type"] != "drone.detected" || payload["object_id"] != "AA:BB" {
		t.Errorf("payload = %v", payload)
	}
	if _, ok := payload["data"].(map[string]any); !ok {
		t.Errorf("payload data = %v, want empty object", payload["data"])
	}
	if got := p.Stats().DetectionsPublished; got != 1 {
		t.Errorf("DetectionsPublished = %d", got)
	}
}

func TestPublisher_AlertDispatched(t *testing.T) {
	t.Parallel()

	b := &mockBroker{}
	p := newTestPublisher(b)
	p.AlertDispatched(context.Background(), &models.AlertRecord{
		ID: 42, FlowID: "flow_1", FlowName: "Airfield", Severity: models.SeverityCritical,
		Title: "Drone at Airfield", EventType: "drone.detected", ObjectID: "AA:BB",
		Location: &models.Location{Lat: 55.87, Lon: -4.43},
	})
	p.AlertDispatched(context.Background(), &models.AlertRecord{ID: 43, FlowID: "flow_2"})
	drain(p)

	msgs := b.sent()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	first := msgs[0].env["payload"].(map[string]any)
	if msgs[0].topic != "mmip/pi-kyle/alerts" || msgs[0].env["type"] != "alert" {
		t.Errorf("topic = %q type = %v", msgs[0].topic, msgs[0].env["type"])
	}
	if first["alert_id"] != float64(42) || first["severity"] != "critical" || first["lat"] != 55.87 {
		t.Errorf("payload = %v", first)
	}
	second := msgs[1].env["payload"].(map[string]any)
	if second["lat"] != nil || second["lon"] != nil {
		t.Errorf("alert without location has lat/lon: %v", second)
	}
}

func TestPublisher_Status(t *testing.T) {
	t.Parallel()

	b := &mockBroker{}
	p := newTestPublisher(b)
	p.started = fixedNow.Add(-90 * time.Second)
	p.PublishStatus(context.Background())

	msgs := b.sent()
	if len(msgs) != 1 || msgs[0].topic != "mmip/pi-kyle/status" {
		t.Fatalf("sent = %v", msgs)
	}
	payload := msgs[0].env["payload"].(map[string]any)
	if payload["uptime_seconds"] != float64(90) {
		t.Errorf("uptime_seconds = %v", payload["uptime_seconds"])
	}
	pos := payload["position"].(map[string]any)
	if pos["lat"] != 55.87 || pos["fix"] != true {
		t.Errorf("position = %v", pos)
	}
	if ds := payload["data_sources"].(map[string]any); ds["drones"] != float64(3) {
		t.Errorf("data_sources = %v", ds)
	}
	sys := payload["system"].(map[string]any)
	if sys["source_type"] != "meshguard" || sys["mmip_version"] != "1.0" {
		t.Errorf("system = %v", sys)
	}
}

func TestPublisher_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		broker *mockBroker
	}{
		{"disconnected", &mockBroker{disconnected: true}},
		{"publish error", &mockBroker{err: errors.New("broker gone")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newTestPublisher(tt.broker)
			p.AlertDispatched(context.Background(), &models.AlertRecord{ID: 1})
			drain(p)
			if len(tt.broker.sent()) != 0 {
				t.Error("message published despite failure")
			}
			if s := p.Stats(); s.Errors != 1 || s.AlertsPublished != 0 {
				t.Errorf("stats = %+v", s)
			}
		})
	}
}

func TestPublisher_NilBroker(t *testing.T) {
	t.Parallel()

	p := New(DefaultConfig(), nil, nil, nil)
	p.PublishStatus(context.Background())
	if p.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", p.Stats().Errors)
	}
}

func TestPublisher_QueueFullDrops(t *testing.T) {
	t.Parallel()

	p := newTestPublisher(&mockBroker{})
	for i := 0; i < queueSize+5; i++ {
		_ = p.HandleDetection(context.Background(), &models.Event{EventType: "ble.detected"})
	}
	if got := p.Stats().Dropped; got != 5 {
		t.Errorf("Dropped = %d, want 5", got)
	}
}

func TestPublisher_SubscribesOnlyDetections(t *testing.T) {
	t.Parallel()

	b := &mockBroker{}
	p := newTestPublisher(b)
	bus := eventbus.New()
	p.Subscribe(bus)

	ctx := context.Background()
	for _, et := range []string{"drone.detected", "drone.updated", "lightning.strike", "weather.warning"} {
		bus.Publish(ctx, &models.Event{EventType: et, Timestamp: 1, ObjectType: "x"})
	}
	drain(p)
	if got := len(b.sent()); got != 2 {
		t.Errorf("forwarded %d events, want 2", got)
	}

	p.Unsubscribe(bus)
	bus.Publish(ctx, &models.Event{EventType: "drone.detected", Timestamp: 1, ObjectType: "drone"})
	drain(p)
	if got := len(b.sent()); got != 2 {
		t.Errorf("forwarded %d events after Unsubscribe, want 2", got)
	}
}

func TestPublisher_RunWithContext(t *testing.T) {
	t.Parallel()

	b := &mockBroker{}
	p := newTestPublisher(b)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.RunWithContext(ctx) }()

	p.AlertDispatched(ctx, &models.AlertRecord{ID: 7})

	deadline := time.Now().Add(2 * time.Second)
	for len(b.sent()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("RunWithContext() = %v", err)
	}

	msgs := b.sent()
	if len(msgs) < 2 {
		t.Fatalf("sent %d messages, want status and alert", len(msgs))
	}
	if msgs[0].env["type"] != TypeStatus {
		t.Errorf("first message type = %v, want status", msgs[0].env["type"])
	}
}
