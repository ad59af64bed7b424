// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package eventbus routes normalized events from producers to subscribers
// with hierarchical wildcard topic matching.
//
// Publish is synchronous: handlers run on the caller's goroutine in
// subscription order, so a slow handler delays the ones after it. The
// alert engine's handler only touches in-memory state and never blocks.
package eventbus

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
)

// Handler receives a published event. The event must be treated as
// read-only; it is shared by every matching handler.
type Handler func(ctx context.Context, event *models.Event) error

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

// Stats is a point-in-time view of bus activity.
type Stats struct {
	TotalEvents     uint64     `json:"total_events"`
	LastEventTime   *time.Time `json:"last_event_time,omitempty"`
	SubscriberCount int        `json:"subscriber_count"`
	PatternCount    int        `json:"pattern_count"`
}

type subscription struct {
	id      SubscriptionID
	pattern string
	handler Handler
}

// Bus is an in-process publish/subscribe router. Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID SubscriptionID

	total     atomic.Uint64
	lastEvent atomic.Int64 // unix nanos, 0 = never

	now    func() time.Time
	logger zerolog.Logger
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		now:    time.Now,
		logger: logging.WithComponent("eventbus"),
	}
}

// Subscribe registers handler for events whose type matches pattern.
//
// Patterns: "*" matches everything, "drone.*" matches "drone" and any type
// beginning with "drone.", anything else is an exact match.
func (b *Bus) Subscribe(pattern string, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, pattern: pattern, handler: handler})
	b.logger.Debug().Str("pattern", pattern).Uint64("subscription", uint64(b.nextID)).Msg("Subscribed")
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers event to every matching handler, synchronously and in
// subscription order. Handler errors and panics are logged and never stop
// later handlers. Events without an event_type are dropped. A zero
// timestamp is stamped with the current time on a copy of the event.
func (b *Bus) Publish(ctx context.Context, event *models.Event) {
	if event == nil || event.EventType == "" {
		b.logger.Warn().Msg("Dropping event without event_type")
		return
	}
	if event.Timestamp == 0 {
		stamped := *event
		stamped.Timestamp = float64(b.now().UnixNano()) / 1e9
		event = &stamped
	}

	b.total.Add(1)
	b.lastEvent.Store(b.now().UnixNano())
	metrics.RecordEventPublished(event.Category())

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if Match(s.pattern, event.EventType) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		b.deliver(ctx, s, event)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EventHandlerPanics.Inc()
			b.logger.Error().
				Str("pattern", s.pattern).
				Str("event_type", event.EventType).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Event handler panicked")
		}
	}()
	if err := s.handler(ctx, event); err != nil {
		b.logger.Error().Err(err).
			Str("pattern", s.pattern).
			Str("event_type", event.EventType).
			Msg("Event handler failed")
	}
}

// Stats returns counters for the admin surface.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	patterns := make(map[string]struct{}, len(b.subs))
	for _, s := range b.subs {
		patterns[s.pattern] = struct{}{}
	}
	st := Stats{
		TotalEvents:     b.total.Load(),
		SubscriberCount: len(b.subs),
		PatternCount:    len(patterns),
	}
	b.mu.RUnlock()

	if ns := b.lastEvent.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		st.LastEventTime = &t
	}
	return st
}

// Match reports whether eventType matches pattern.
func Match(pattern, eventType string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		prefix := pattern[:len(pattern)-2]
		return eventType == prefix || strings.HasPrefix(eventType, prefix+".")
	default:
		return pattern == eventType
	}
}
