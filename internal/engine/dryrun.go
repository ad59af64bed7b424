// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/state"
)

// ErrNoEvent is returned by DryRun without a test event.
var ErrNoEvent = errors.New("dry run requires an event")

// NodeResult is one node's outcome in a dry run. Result is "pass", "fail",
// "unreached" or "skipped" when evaluation never visited the node.
type NodeResult struct {
	NodeID  string          `json:"node_id"`
	Type    models.NodeType `json:"type"`
	Subtype string          `json:"subtype"`
	Result  string          `json:"result"`
	Error   string          `json:"error,omitempty"`
}

// ActionPreview is an action that would run, with its resolved config.
type ActionPreview struct {
	NodeID string         `json:"node_id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// TestResult is the outcome of DryRun.
type TestResult struct {
	TriggerMatched bool            `json:"trigger_matched"`
	Nodes          []NodeResult    `json:"nodes"`
	Actions        []ActionPreview `json:"actions"`
	Title          string          `json:"title,omitempty"`
	Message        string          `json:"message,omitempty"`
	// WouldFire is false when no action was selected or the live cooldown
	// for the flow and object has not elapsed.
	WouldFire         bool    `json:"would_fire"`
	CooldownRemaining float64 `json:"cooldown_remaining_seconds,omitempty"`
}

const resultSkipped = "skipped"

// DryRun evaluates def against ev without side effects. The flow need not
// be saved. Stateful conditions run against scratch tables seeded with a
// copy of the object's live state, so live timers, rate logs and cooldowns
// are only read, never written.
func (e *Engine) DryRun(ctx context.Context, def *models.FlowDefinition, ev *models.Event) (*TestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrNoEvent
	}
	cf, err := flows.Compile(def)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if ev.Timestamp > 0 {
		now = ev.Time()
	}

	scratch := newTables(1, func(*state.CorruptionError) {})
	if ev.Tracked() {
		if st, ok := e.tables.objects.Get(ev.ObjectID); ok {
			scratch.objects.Put(st)
		}
	}
	obs := e.observe(scratch, ev, now)

	x := newEvaluation(cf, ev, obs, now, scratch, e.zones, e.cfg.Station)
	matched, selected := x.run()

	res := &TestResult{TriggerMatched: matched}
	for _, n := range def.Nodes {
		nr := NodeResult{NodeID: n.ID, Type: n.Type, Subtype: n.Subtype, Result: resultSkipped}
		if s, ok := x.memo[n.ID]; ok {
			nr.Result = s.String()
		}
		if n.Type == models.NodeAction && matched {
			nr.Result = failed.String()
			for _, a := range selected {
				if a.ID == n.ID {
					nr.Result = passed.String()
				}
			}
		}
		if err := x.errs[n.ID]; err != nil {
			nr.Error = err.Error()
		}
		res.Nodes = append(res.Nodes, nr)
	}

	if !matched || len(selected) == 0 {
		return res, nil
	}

	f := prepare(cf, ev, selected, x.scratch)
	res.Title, res.Message = f.title, f.message
	for _, r := range f.requests {
		res.Actions = append(res.Actions, ActionPreview{NodeID: r.NodeID, Type: r.Type, Config: r.Config})
	}

	res.WouldFire = true
	key := state.CooldownKey{FlowID: cf.ID(), ObjectID: ev.ObjectKey()}
	if cd, ok := e.tables.cooldowns.Get(key); ok {
		if left := cf.Cooldown() - now.Sub(cd.LastFiredAt); left > 0 {
			res.WouldFire = false
			res.CooldownRemaining = left.Seconds()
		}
	}
	return res, nil
}
