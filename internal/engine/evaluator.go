// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"time"

	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/state"
)

// nodeState is the tri-state result of a node for one event.
type nodeState uint8

const (
	// unreached: no predecessor path passed, the node was not evaluated.
	unreached nodeState = iota
	failed
	passed
)

func (s nodeState) String() string {
	switch s {
	case passed:
		return "pass"
	case failed:
		return "fail"
	default:
		return "unreached"
	}
}

// ZoneSource supplies the current zone reference data. *geo.ZoneSet
// implements it.
type ZoneSource interface {
	Zones() []geo.Zone
	Zone(id string) (geo.Zone, bool)
}

// tables is the mutable state shared by every flow.
type tables struct {
	objects   *state.ObjectTracker
	cooldowns *state.CooldownTable
	timers    *state.DurationTimers
	limiter   *state.RateLimiter
}

func newTables(shards int, onCorrupt state.CorruptionHandler) *tables {
	return &tables{
		objects:   state.NewObjectTracker(shards, onCorrupt),
		cooldowns: state.NewCooldownTable(shards, onCorrupt),
		timers:    state.NewDurationTimers(shards),
		limiter:   state.NewRateLimiter(shards),
	}
}

// evaluation is one flow evaluated against one event. Node results are
// memoized so every condition runs at most once, which keeps stateful
// conditions (duration, rate_limit) from double counting when several
// paths share them. Not safe for concurrent use.
type evaluation struct {
	flow    *flows.CompiledFlow
	event   *models.Event
	obs     *state.Observation // nil for untracked events
	now     time.Time
	tables  *tables
	zones   ZoneSource
	station *geo.Point

	memo    map[string]nodeState
	errs    map[string]error
	scratch map[string]any
}

func newEvaluation(cf *flows.CompiledFlow, ev *models.Event, obs *state.Observation, now time.Time, t *tables, zones ZoneSource, station *geo.Point) *evaluation {
	return &evaluation{
		flow:    cf,
		event:   ev,
		obs:     obs,
		now:     now,
		tables:  t,
		zones:   zones,
		station: station,
		memo:    make(map[string]nodeState, len(cf.Nodes)),
		scratch: make(map[string]any),
	}
}

// run matches the trigger and returns the action nodes selected for this
// event, in definition order. An action is selected when any of its
// predecessors passed.
func (x *evaluation) run() (matched bool, selected []*flows.CompiledNode) {
	t := &x.flow.Trigger
	ok, err := x.matchTrigger()
	if err != nil {
		x.recordError(t.NodeID, t.Subtype, "trigger", err)
	}
	if !ok {
		x.memo[t.NodeID] = failed
		return false, nil
	}
	x.memo[t.NodeID] = passed

	for _, a := range x.flow.Actions {
		for _, p := range x.flow.Preds[a.ID] {
			if x.value(p) == passed {
				selected = append(selected, a)
				break
			}
		}
	}
	return true, selected
}

// value resolves a node's state, pulling from its predecessors in edge
// order.
func (x *evaluation) value(id string) nodeState {
	if s, ok := x.memo[id]; ok {
		return s
	}
	n := x.flow.Nodes[id]
	s := unreached
	if n != nil && n.Type == models.NodeCondition {
		if lc, ok := n.Condition.(*flows.LogicCondition); ok {
			s = x.logic(lc)
		} else {
			s = x.gate(n)
		}
	}
	x.memo[id] = s
	return s
}

// gate evaluates an ordinary condition once any predecessor passed.
func (x *evaluation) gate(n *flows.CompiledNode) nodeState {
	reached := false
	for _, p := range x.flow.Preds[n.ID] {
		if x.value(p) == passed {
			reached = true
			break
		}
	}
	if !reached {
		return unreached
	}
	ok, err := x.condition(n.Condition)
	if err != nil {
		x.recordError(n.ID, n.Subtype, "condition", err)
		return failed
	}
	if ok {
		return passed
	}
	return failed
}

// logic combines input states. AND stops at the first input that did not
// pass and OR at the first that passed, so later inputs are never
// evaluated. An unreached input propagates as unreached, which keeps NOT
// from passing on a branch that never ran.
func (x *evaluation) logic(c *flows.LogicCondition) nodeState {
	preds := x.flow.Preds[c.NodeID()]
	switch c.Op {
	case flows.LogicOR:
		sawFail := false
		for _, p := range preds {
			switch x.value(p) {
			case passed:
				return passed
			case failed:
				sawFail = true
			}
		}
		if sawFail {
			return failed
		}
		return unreached

	case flows.LogicNOT:
		if len(preds) == 0 {
			return unreached
		}
		switch x.value(preds[0]) {
		case passed:
			return failed
		case failed:
			return passed
		}
		return unreached

	default:
		for _, p := range preds {
			if s := x.value(p); s != passed {
				return s
			}
		}
		if len(preds) == 0 {
			return unreached
		}
		return passed
	}
}

func (x *evaluation) recordError(nodeID, subtype, nodeType string, err error) {
	ee := &EvaluationError{
		FlowID:  x.flow.ID(),
		NodeID:  nodeID,
		Subtype: subtype,
		Reason:  nodeType + " not evaluable",
		Err:     err,
	}
	if x.errs == nil {
		x.errs = make(map[string]error)
	}
	x.errs[nodeID] = ee
	metrics.RecordEvaluationError(nodeType, subtype)
	logging.Debug().Err(ee).Str("event_type", x.event.EventType).Msg("Evaluation error, node treated as failed")
}

// speed returns the event speed in knots, preferring speed_kts.
func (x *evaluation) speed() (float64, bool) {
	for _, k := range []string{"speed_kts", "speed"} {
		if v, ok := x.event.DataValue(k); ok {
			if f, ok := models.ToFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}
