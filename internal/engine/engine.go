// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/eventbus"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/state"
	"github.com/tomtom215/meshguard/internal/templating"
)

// Config tunes the engine's state retention and maintenance loop.
type Config struct {
	MaintenanceInterval  time.Duration `koanf:"maintenance_interval"`
	ObjectRetention      time.Duration `koanf:"object_retention"`
	RateLimitRetention   time.Duration `koanf:"rate_limit_retention"`
	TimerIdle            time.Duration `koanf:"timer_idle"`
	HistoryRetentionDays int           `koanf:"history_retention_days" validate:"gte=0"`
	Shards               int           `koanf:"shards" validate:"gte=0"`
	// Station is the sensor position, the default reference for lightning
	// distance filters.
	Station *geo.Point `koanf:"station"`
}

// DefaultConfig returns the standard retention settings.
func DefaultConfig() Config {
	return Config{
		MaintenanceInterval:  5 * time.Minute,
		ObjectRetention:      24 * time.Hour,
		RateLimitRetention:   time.Hour,
		TimerIdle:            time.Hour,
		HistoryRetentionDays: 90,
		Shards:               state.DefaultShards,
	}
}

// JobSubmitter accepts flow firings. *dispatch.Dispatcher implements it.
type JobSubmitter interface {
	Submit(job *dispatch.Job) error
	Types() []string
}

// HistoryPruner deletes alert history older than a cutoff.
type HistoryPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stats is the engine section of the admin stats view.
type Stats struct {
	TotalFlows     int                         `json:"total_flows"`
	EnabledFlows   int                         `json:"enabled_flows"`
	Evaluations    uint64                      `json:"evaluations"`
	Fires          uint64                      `json:"fires"`
	Suppressed     uint64                      `json:"suppressed"`
	LastEvaluation *time.Time                  `json:"last_evaluation,omitempty"`
	TrackedObjects int                         `json:"tracked_objects"`
	Cooldowns      int                         `json:"cooldowns"`
	ActionTypes    []string                    `json:"action_types"`
	Bus            *eventbus.Stats             `json:"bus,omitempty"`
	RegistryErrors []*flows.ConfigurationError `json:"registry_errors,omitempty"`
}

// Engine evaluates every enabled flow against each published event and
// hands firings to the dispatcher. HandleEvent never blocks on I/O.
type Engine struct {
	cfg        Config
	registry   *flows.Registry
	zones      ZoneSource
	tables     *tables
	dispatcher JobSubmitter
	pruner     HistoryPruner
	logger     zerolog.Logger

	mu  sync.Mutex
	bus *eventbus.Bus
	sub eventbus.SubscriptionID

	evaluations atomic.Uint64
	fires       atomic.Uint64
	suppressed  atomic.Uint64
	lastEval    atomic.Int64 // unix nanos
}

// New creates an engine. zones may be nil when no zones are configured.
func New(cfg Config, registry *flows.Registry, zones ZoneSource, dispatcher JobSubmitter) *Engine {
	def := DefaultConfig()
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = def.MaintenanceInterval
	}
	if cfg.ObjectRetention <= 0 {
		cfg.ObjectRetention = def.ObjectRetention
	}
	if cfg.RateLimitRetention <= 0 {
		cfg.RateLimitRetention = def.RateLimitRetention
	}
	if cfg.TimerIdle <= 0 {
		cfg.TimerIdle = def.TimerIdle
	}
	return &Engine{
		cfg:        cfg,
		registry:   registry,
		zones:      zones,
		tables:     newTables(cfg.Shards, state.LogCorruption),
		dispatcher: dispatcher,
		logger:     logging.WithComponent("engine"),
	}
}

// SetHistoryPruner enables history retention in the maintenance loop.
func (e *Engine) SetHistoryPruner(p HistoryPruner) {
	e.pruner = p
}

// Restore seeds the cooldown table from persisted records.
func (e *Engine) Restore(records []models.CooldownRecord) {
	e.tables.cooldowns.Restore(records)
	e.logger.Info().Int("cooldowns", len(records)).Msg("Restored cooldown state")
}

// Start subscribes the engine to every event on bus.
func (e *Engine) Start(bus *eventbus.Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bus != nil {
		return
	}
	e.bus = bus
	e.sub = bus.Subscribe("*", e.HandleEvent)
	e.logger.Info().Msg("Alert engine subscribed to event bus")
}

// Stop removes the bus subscription.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bus == nil {
		return
	}
	e.bus.Unsubscribe(e.sub)
	e.bus = nil
	e.logger.Info().Msg("Alert engine unsubscribed")
}

// HandleEvent processes one event. It matches eventbus.Handler. Evaluation
// errors and panics are absorbed per flow, so it always returns nil.
func (e *Engine) HandleEvent(ctx context.Context, ev *models.Event) error {
	if ev == nil {
		return nil
	}
	start := time.Now()
	now := start.UTC()
	if ev.Timestamp > 0 {
		now = ev.Time()
	}

	ctx = logging.ContextWithEvent(ctx, ev.EventType, ev.ObjectID)
	obs := e.observe(e.tables, ev, now)
	snap := e.registry.Snapshot()
	for _, cf := range snap.Enabled {
		e.evaluateFlow(ctx, cf, ev, obs, now)
	}

	e.evaluations.Add(1)
	e.lastEval.Store(start.UnixNano())
	metrics.RecordEvaluation(time.Since(start))
	return nil
}

// observe updates per-object state in t for tracked events.
func (e *Engine) observe(t *tables, ev *models.Event, now time.Time) *state.Observation {
	if !ev.Tracked() {
		return nil
	}
	var upd state.ZoneUpdate
	if !ev.Location.IsZero() && e.zones != nil {
		if zones := e.zones.Zones(); len(zones) > 0 {
			p := geo.Point{Lat: ev.Location.Lat, Lon: ev.Location.Lon}
			upd.Recompute = true
			for _, z := range zones {
				if z.Test(p).Inside {
					upd.Computed = append(upd.Computed, z.ID)
				}
			}
		}
	}
	if zoneID := ev.DataString("zone_id"); zoneID != "" {
		switch {
		case strings.HasSuffix(ev.EventType, "zone_entry"):
			upd.Enter = zoneID
		case strings.HasSuffix(ev.EventType, "zone_exit"):
			upd.Exit = zoneID
		}
	}
	obs := t.objects.Observe(ev.ObjectID, ev.ObjectType, ev.Location, upd, now)
	return &obs
}

// evaluateFlow runs one flow. A panic is logged and confined to the flow.
func (e *Engine) evaluateFlow(ctx context.Context, cf *flows.CompiledFlow, ev *models.Event, obs *state.Observation, now time.Time) {
	ctx = logging.ContextWithFlow(ctx, cf.ID())
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordEvaluationError("flow", "panic")
			logging.Ctx(ctx).Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Flow evaluation panicked")
		}
	}()

	x := newEvaluation(cf, ev, obs, now, e.tables, e.zones, e.cfg.Station)
	matched, selected := x.run()
	if !matched || len(selected) == 0 {
		return
	}

	key := state.CooldownKey{FlowID: cf.ID(), ObjectID: ev.ObjectKey()}
	cd, ok := e.tables.cooldowns.TryAcquire(key, cf.Cooldown(), now)
	if !ok {
		e.suppressed.Add(1)
		metrics.RecordSuppressed("cooldown")
		logging.Ctx(ctx).Debug().
			Time("last_fired_at", cd.LastFiredAt).
			Msg("Firing suppressed by cooldown")
		return
	}

	job := newJob(prepare(cf, ev, selected, x.scratch), cf, now, cd)
	e.fires.Add(1)
	metrics.RecordFlowFire(cf.ID(), string(cf.Severity()))
	if err := e.dispatcher.Submit(job); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("job_id", job.ID).
			Msg("Dispatch rejected firing")
	}
}

// firing is a selected set of actions with everything resolved.
type firing struct {
	event    *models.Event
	context  templating.Context
	title    string
	message  string
	requests []*dispatch.ActionRequest
}

// prepare resolves templates for the selected actions against a detached
// copy of the event. Title and message come from the first ui_alert, else
// the flow name and "{event_type} - {object_id}".
func prepare(cf *flows.CompiledFlow, ev *models.Event, selected []*flows.CompiledNode, scratch map[string]any) *firing {
	detached := ev.Clone()
	tctx := templating.BuildContext(detached, cf.Name(), cf.Severity(), scratch)
	f := &firing{event: detached, context: tctx, title: cf.Name()}

	uiSeen := false
	for _, n := range selected {
		cfg := templating.ResolveConfig(n.Config, tctx)
		if n.Subtype == flows.ActionUIAlert && !uiSeen {
			uiSeen = true
			if t := models.ToString(cfg["title"]); t != "" {
				f.title = t
			}
			f.message = models.ToString(cfg["message"])
		}
		f.requests = append(f.requests, &dispatch.ActionRequest{
			NodeID:   n.ID,
			Type:     n.Subtype,
			Config:   cfg,
			Context:  tctx,
			Event:    detached,
			FlowID:   cf.ID(),
			FlowName: cf.Name(),
			Severity: cf.Severity(),
		})
	}
	if f.message == "" {
		f.message = fmt.Sprintf("%s - %s", ev.EventType, ev.ObjectID)
	}
	for _, r := range f.requests {
		r.Title, r.Message = f.title, f.message
	}
	return f
}

func newJob(f *firing, cf *flows.CompiledFlow, now time.Time, cd models.CooldownRecord) *dispatch.Job {
	ev := f.event
	rec := &models.AlertRecord{
		FlowID:     cf.ID(),
		FlowName:   cf.Name(),
		Severity:   cf.Severity(),
		Title:      f.title,
		Message:    f.message,
		EventType:  ev.EventType,
		ObjectID:   ev.ObjectID,
		ObjectType: ev.ObjectType,
		EventData:  ev,
		CreatedAt:  now,
	}
	if ev.Location != nil {
		loc := *ev.Location
		rec.Location = &loc
	}
	return &dispatch.Job{
		ID:       uuid.NewString(),
		Record:   rec,
		Requests: f.requests,
		Cooldown: cd,
	}
}

// RunWithContext runs the maintenance loop until ctx is canceled.
func (e *Engine) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.MaintenanceInterval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.cfg.MaintenanceInterval).Msg("Engine maintenance started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine maintenance stopped")
			return ctx.Err()
		case <-ticker.C:
			e.maintain(ctx, time.Now().UTC())
		}
	}
}

// maintain prunes state tables and expired history.
func (e *Engine) maintain(ctx context.Context, now time.Time) {
	objects := e.tables.objects.Prune(now.Add(-e.cfg.ObjectRetention))
	logs := e.tables.limiter.Prune(now.Add(-e.cfg.RateLimitRetention))
	timers := e.tables.timers.Prune(now.Add(-e.cfg.TimerIdle))
	metrics.TrackedObjects.Set(float64(e.tables.objects.Len()))

	var history int64
	if e.pruner != nil && e.cfg.HistoryRetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -e.cfg.HistoryRetentionDays)
		n, err := e.pruner.DeleteOlderThan(ctx, cutoff)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error().Err(err).Msg("Alert history retention failed")
		}
		history = n
	}

	e.logger.Debug().
		Int("objects", objects).
		Int("rate_logs", logs).
		Int("timers", timers).
		Int64("history", history).
		Msg("Engine maintenance pass")
}

// Stats returns counters for the admin surface.
func (e *Engine) Stats() Stats {
	snap := e.registry.Snapshot()
	st := Stats{
		TotalFlows:     len(snap.Flows),
		EnabledFlows:   len(snap.Enabled),
		Evaluations:    e.evaluations.Load(),
		Fires:          e.fires.Load(),
		Suppressed:     e.suppressed.Load(),
		TrackedObjects: e.tables.objects.Len(),
		Cooldowns:      e.tables.cooldowns.Len(),
		RegistryErrors: snap.Errors,
	}
	if e.dispatcher != nil {
		st.ActionTypes = e.dispatcher.Types()
	}
	if ns := e.lastEval.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		st.LastEvaluation = &t
	}
	e.mu.Lock()
	if e.bus != nil {
		bs := e.bus.Stats()
		st.Bus = &bs
	}
	e.mu.Unlock()
	return st
}

// ForgetFlow drops all state held for a deleted flow.
func (e *Engine) ForgetFlow(flowID string) {
	e.tables.cooldowns.ForgetFlow(flowID)
	e.tables.timers.ForgetFlow(flowID)
	e.tables.limiter.ForgetFlow(flowID)
}

// Object returns the tracked state of an object.
func (e *Engine) Object(objectID string) (state.ObjectState, bool) {
	return e.tables.objects.Get(objectID)
}
