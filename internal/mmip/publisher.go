// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package mmip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/eventbus"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
)

const (
	Protocol = "mmip"
	Version  = "1.0"

	TypeDetection = "detection"
	TypeAlert     = "alert"
	TypeStatus    = "status"

	DefaultStatusInterval = 60 * time.Second
	queueSize             = 512
)

// DetectionEvents are the bus event types forwarded as detections. Only
// first sightings are sent; position updates stay local.
var DetectionEvents = []string{
	"drone.detected",
	"aircraft.detected",
	"vessel.detected",
	"ble.detected",
	"lightning.strike",
	"aircraft.squawk_change",
}

// ErrDisconnected is returned when the broker connection is down.
var ErrDisconnected = errors.New("mmip: broker not connected")

// Config controls the publisher.
type Config struct {
	Enabled        bool          `koanf:"enabled"`
	SourceID       string        `koanf:"source_id"`
	SourceType     string        `koanf:"source_type"`
	StatusInterval time.Duration `koanf:"status_interval"`
	QoS            byte          `koanf:"qos"`
}

// DefaultConfig returns a disabled publisher config.
func DefaultConfig() Config {
	return Config{
		SourceID:       "unknown",
		SourceType:     "meshguard",
		StatusInterval: DefaultStatusInterval,
	}
}

// Envelope is the MMIP/1.0 wire frame.
type Envelope struct {
	Protocol  string `json:"protocol"`
	Version   string `json:"version"`
	SourceID  string `json:"source_id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
}

// DetectionPayload describes one forwarded sighting.
type DetectionPayload struct {
	DetectionType string           `json:"detection_type"`
	Source        string           `json:"source"`
	ObjectID      string           `json:"object_id"`
	ObjectType    string           `json:"object_type"`
	Location      *models.Location `json:"location"`
	Data          map[string]any   `json:"data"`
}

// AlertPayload describes one fired alert.
type AlertPayload struct {
	AlertID    int64           `json:"alert_id"`
	FlowID     string          `json:"flow_id"`
	FlowName   string          `json:"flow_name"`
	Severity   models.Severity `json:"severity"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	EventType  string          `json:"event_type"`
	ObjectID   string          `json:"object_id"`
	ObjectType string          `json:"object_type"`
	Lat        *float64        `json:"lat"`
	Lon        *float64        `json:"lon"`
}

// Position is the station fix reported in status frames.
type Position struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Alt    float64 `json:"alt"`
	Fix    bool    `json:"fix"`
	Source string  `json:"source"`
}

// StatusPayload is the heartbeat body.
type StatusPayload struct {
	UptimeSeconds int64          `json:"uptime_seconds"`
	Position      Position       `json:"position"`
	DataSources   map[string]any `json:"data_sources"`
	Stats         Stats          `json:"mmip_stats"`
	System        map[string]any `json:"system"`
}

// Stats counts publisher activity.
type Stats struct {
	DetectionsPublished int64 `json:"detections_published"`
	AlertsPublished     int64 `json:"alerts_published"`
	HeartbeatsPublished int64 `json:"heartbeats_published"`
	Dropped             int64 `json:"dropped"`
	Errors              int64 `json:"errors"`
	LastPublish         int64 `json:"last_publish"`
}

// StatusFunc reports per-source counters for the heartbeat.
type StatusFunc func() map[string]any

// connectionChecker is implemented by mqtt.Client.
type connectionChecker interface {
	IsConnected() bool
}

type outbound struct {
	kind  string
	topic string
	env   Envelope
}

// Publisher bridges the event bus and fired alerts to MMIP topics.
type Publisher struct {
	cfg     Config
	pub     dispatch.Publisher
	station *geo.Point
	status  StatusFunc
	logger  zerolog.Logger
	now     func() time.Time

	queue   chan outbound
	started time.Time

	detections atomic.Int64
	alerts     atomic.Int64
	heartbeats atomic.Int64
	dropped    atomic.Int64
	errs       atomic.Int64
	last       atomic.Int64

	mu   sync.Mutex
	subs []eventbus.SubscriptionID
}

// New creates a publisher. station and status may be nil.
func New(cfg Config, pub dispatch.Publisher, station *geo.Point, status StatusFunc) *Publisher {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if cfg.SourceID == "" {
		cfg.SourceID = DefaultConfig().SourceID
	}
	if cfg.SourceType == "" {
		cfg.SourceType = DefaultConfig().SourceType
	}
	if status == nil {
		status = func() map[string]any { return map[string]any{} }
	}
	return &Publisher{
		cfg:     cfg,
		pub:     pub,
		station: station,
		status:  status,
		logger:  logging.WithComponent("mmip"),
		now:     time.Now,
		queue:   make(chan outbound, queueSize),
		started: time.Now(),
	}
}

// Topic returns mmip/{source_id}/{suffix}.
func (p *Publisher) Topic(suffix string) string {
	return fmt.Sprintf("%s/%s/%s", Protocol, p.cfg.SourceID, suffix)
}

func (p *Publisher) envelope(msgType string, payload any) Envelope {
	return Envelope{
		Protocol:  Protocol,
		Version:   Version,
		SourceID:  p.cfg.SourceID,
		Timestamp: p.now().UTC().Format(time.RFC3339Nano),
		Type:      msgType,
		Payload:   payload,
	}
}

// Subscribe registers the detection handler on bus.
func (p *Publisher) Subscribe(bus *eventbus.Bus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pattern := range DetectionEvents {
		p.subs = append(p.subs, bus.Subscribe(pattern, p.HandleDetection))
	}
	p.logger.Info().Int("patterns", len(DetectionEvents)).Msg("MMIP subscribed to detections")
}

// Unsubscribe removes the handlers added by Subscribe.
func (p *Publisher) Unsubscribe(bus *eventbus.Bus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.subs {
		bus.Unsubscribe(id)
	}
	p.subs = nil
}

// HandleDetection queues a detection envelope. It never blocks the bus.
func (p *Publisher) HandleDetection(_ context.Context, ev *models.Event) error {
	payload := DetectionPayload{
		DetectionType: ev.EventType,
		Source:        ev.Source,
		ObjectID:      ev.ObjectID,
		ObjectType:    ev.ObjectType,
		Location:      ev.Location,
		Data:          ev.Data,
	}
	if payload.Data == nil {
		payload.Data = map[string]any{}
	}
	p.enqueue(TypeDetection, "detections", payload)
	return nil
}

// AlertDispatched implements dispatch.Observer.
func (p *Publisher) AlertDispatched(_ context.Context, rec *models.AlertRecord) {
	payload := AlertPayload{
		AlertID:    rec.ID,
		FlowID:     rec.FlowID,
		FlowName:   rec.FlowName,
		Severity:   rec.Severity,
		Title:      rec.Title,
		Message:    rec.Message,
		EventType:  rec.EventType,
		ObjectID:   rec.ObjectID,
		ObjectType: rec.ObjectType,
	}
	if rec.Location != nil {
		lat, lon := rec.Location.Lat, rec.Location.Lon
		payload.Lat, payload.Lon = &lat, &lon
	}
	p.enqueue(TypeAlert, "alerts", payload)
}

func (p *Publisher) enqueue(kind, suffix string, payload any) {
	msg := outbound{kind: kind, topic: p.Topic(suffix), env: p.envelope(kind, payload)}
	select {
	case p.queue <- msg:
	default:
		p.dropped.Add(1)
		metrics.RecordMMIP(kind, false)
		p.logger.Warn().Str("type", kind).Msg("MMIP queue full, dropping message")
	}
}

// RunWithContext drains the queue and publishes a status heartbeat every
// StatusInterval, starting with one immediately.
func (p *Publisher) RunWithContext(ctx context.Context) error {
	p.started = p.now()
	p.logger.Info().
		Str("source_id", p.cfg.SourceID).
		Dur("heartbeat", p.cfg.StatusInterval).
		Msg("MMIP publisher started")

	p.PublishStatus(ctx)
	ticker := time.NewTicker(p.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("MMIP publisher stopped")
			return ctx.Err()
		case msg := <-p.queue:
			p.send(ctx, msg)
		case <-ticker.C:
			p.PublishStatus(ctx)
		}
	}
}

// PublishStatus sends one heartbeat.
func (p *Publisher) PublishStatus(ctx context.Context) {
	pos := Position{Source: "none"}
	if p.station != nil {
		pos = Position{Lat: p.station.Lat, Lon: p.station.Lon, Fix: true, Source: "config"}
	}
	payload := StatusPayload{
		UptimeSeconds: int64(p.now().Sub(p.started).Seconds()),
		Position:      pos,
		DataSources:   p.status(),
		Stats:         p.Stats(),
		System: map[string]any{
			"source_type":  p.cfg.SourceType,
			"mmip_version": Version,
		},
	}
	p.send(ctx, outbound{kind: TypeStatus, topic: p.Topic("status"), env: p.envelope(TypeStatus, payload)})
}

func (p *Publisher) send(ctx context.Context, msg outbound) {
	if err := p.publish(ctx, msg); err != nil {
		p.errs.Add(1)
		metrics.RecordMMIP(msg.kind, false)
		if errors.Is(err, ErrDisconnected) {
			p.logger.Debug().Str("topic", msg.topic).Msg("MMIP skipped, broker not connected")
			return
		}
		p.logger.Warn().Err(err).Str("topic", msg.topic).Msg("MMIP publish failed")
		return
	}
	metrics.RecordMMIP(msg.kind, true)
	p.last.Store(p.now().Unix())
	switch msg.kind {
	case TypeDetection:
		p.detections.Add(1)
	case TypeAlert:
		p.alerts.Add(1)
	case TypeStatus:
		p.heartbeats.Add(1)
	}
}

func (p *Publisher) publish(ctx context.Context, msg outbound) error {
	if p.pub == nil {
		return ErrDisconnected
	}
	if cc, ok := p.pub.(connectionChecker); ok && !cc.IsConnected() {
		return ErrDisconnected
	}
	body, err := json.Marshal(msg.env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", msg.kind, err)
	}
	return p.pub.Publish(ctx, msg.topic, p.cfg.QoS, false, body)
}

// Stats returns a snapshot of publisher counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		DetectionsPublished: p.detections.Load(),
		AlertsPublished:     p.alerts.Load(),
		HeartbeatsPublished: p.heartbeats.Load(),
		Dropped:             p.dropped.Load(),
		Errors:              p.errs.Load(),
		LastPublish:         p.last.Load(),
	}
}

var _ dispatch.Observer = (*Publisher)(nil)
