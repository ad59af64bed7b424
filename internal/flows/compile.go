// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package flows

import (
	"slices"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
)

// Action subtypes understood by the dispatcher.
const (
	ActionUIAlert  = "ui_alert"
	ActionTelegram = "telegram_push"
	ActionSound    = "sound"
	ActionAudio    = "audio"
	ActionMQTT     = "mqtt"
	ActionWebhook  = "webhook"
	ActionDBLog    = "db_log"
)

// ActionSubtypes lists every action subtype Compile accepts.
var ActionSubtypes = []string{
	ActionUIAlert, ActionTelegram, ActionSound, ActionAudio, ActionMQTT, ActionWebhook, ActionDBLog,
}

// CompiledNode is one validated vertex of a CompiledFlow.
type CompiledNode struct {
	ID        string
	Type      models.NodeType
	Subtype   string
	Config    map[string]any
	Condition Condition // condition nodes only
}

// CompiledFlow is an immutable, validated flow graph. It is shared by
// concurrent evaluations and must never be modified after Compile.
type CompiledFlow struct {
	Def     *models.FlowDefinition
	Trigger Trigger
	Nodes   map[string]*CompiledNode
	// Preds lists each node's predecessors in edge order.
	Preds map[string][]string
	// Succs lists each node's successors in edge order.
	Succs map[string][]string
	// Actions are the action nodes in definition order.
	Actions []*CompiledNode
}

// ID returns the flow ID.
func (f *CompiledFlow) ID() string { return f.Def.ID }

// Name returns the flow name.
func (f *CompiledFlow) Name() string { return f.Def.Name }

// Severity returns the flow severity.
func (f *CompiledFlow) Severity() models.Severity { return f.Def.Severity }

// Enabled reports whether the flow participates in evaluation.
func (f *CompiledFlow) Enabled() bool { return f.Def.Enabled }

// Cooldown returns the flow-level cooldown.
func (f *CompiledFlow) Cooldown() time.Duration {
	return time.Duration(f.Def.CooldownSeconds) * time.Second
}

// Compile validates def and builds its evaluation graph. Invalid flows
// return a *ConfigurationError listing every problem found.
func Compile(def *models.FlowDefinition) (*CompiledFlow, error) {
	if def == nil {
		return nil, &ConfigurationError{Problems: []Problem{{Message: "nil flow definition"}}}
	}
	def = def.Clone()
	var p problems

	if !def.Severity.Valid() {
		p.add("", "invalid severity %q", def.Severity)
	}
	if def.CooldownSeconds < 0 {
		p.add("", "cooldown_seconds must be >= 0")
	}

	cf := &CompiledFlow{
		Def:   def,
		Nodes: make(map[string]*CompiledNode, len(def.Nodes)),
		Preds: make(map[string][]string),
		Succs: make(map[string][]string),
	}

	var triggers []string
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if n.ID == "" {
			p.add("", "node %d has no id", i)
			continue
		}
		if _, dup := cf.Nodes[n.ID]; dup {
			p.add(n.ID, "duplicate node id")
			continue
		}
		if n.Config == nil {
			n.Config = map[string]any{}
		}
		cn := &CompiledNode{ID: n.ID, Type: n.Type, Subtype: n.Subtype, Config: n.Config}
		switch n.Type {
		case models.NodeTrigger:
			triggers = append(triggers, n.ID)
			cf.Trigger = compileTrigger(n, &p)
		case models.NodeCondition:
			cn.Condition = compileCondition(n, &p)
		case models.NodeAction:
			if !slices.Contains(ActionSubtypes, n.Subtype) {
				p.add(n.ID, "unknown action subtype %q", n.Subtype)
			}
			cf.Actions = append(cf.Actions, cn)
		default:
			p.add(n.ID, "unknown node type %q", n.Type)
		}
		cf.Nodes[n.ID] = cn
	}

	switch len(triggers) {
	case 0:
		p.add("", "flow has no trigger node")
	case 1:
	default:
		p.add("", "flow has %d trigger nodes, want exactly 1", len(triggers))
	}
	if len(cf.Actions) == 0 {
		p.add("", "flow has no action node")
	}

	seen := make(map[models.Edge]bool, len(def.Edges))
	for _, e := range def.Edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		from, okFrom := cf.Nodes[e.From]
		to, okTo := cf.Nodes[e.To]
		switch {
		case !okFrom:
			p.add(e.From, "edge from unknown node")
			continue
		case !okTo:
			p.add(e.To, "edge to unknown node")
			continue
		case e.From == e.To:
			p.add(e.From, "self-loop edge")
			continue
		case to.Type == models.NodeTrigger:
			p.add(e.To, "trigger node has an incoming edge")
			continue
		case from.Type == models.NodeAction:
			p.add(e.From, "action node has an outgoing edge")
			continue
		}
		cf.Succs[e.From] = append(cf.Succs[e.From], e.To)
		cf.Preds[e.To] = append(cf.Preds[e.To], e.From)
	}

	if hasCycle(cf) {
		p.add("", "flow graph contains a cycle")
	} else if len(triggers) == 1 {
		// A condition with no path from the trigger is never evaluated, so
		// any gate below it could never pass.
		reach := reachable(cf, triggers[0])
		for i := range def.Nodes {
			cn := cf.Nodes[def.Nodes[i].ID]
			if cn == nil || reach[cn.ID] || cn.Type == models.NodeTrigger {
				continue
			}
			p.add(cn.ID, "%s is not reachable from the trigger", cn.Type)
		}
	}

	for i := range def.Nodes {
		cn := cf.Nodes[def.Nodes[i].ID]
		if cn == nil {
			continue
		}
		lc, ok := cn.Condition.(*LogicCondition)
		if !ok {
			continue
		}
		inputs := len(cf.Preds[cn.ID])
		switch {
		case lc.Op == LogicNOT && inputs != 1:
			p.add(cn.ID, "NOT requires exactly one input, has %d", inputs)
		case inputs == 0:
			p.add(cn.ID, "%s has no inputs", lc.Op)
		}
	}

	if err := p.err(def.ID, def.Name); err != nil {
		return nil, err
	}
	return cf, nil
}

// hasCycle runs Kahn's algorithm over the edge set.
func hasCycle(cf *CompiledFlow) bool {
	indeg := make(map[string]int, len(cf.Nodes))
	for id := range cf.Nodes {
		indeg[id] = len(cf.Preds[id])
	}
	queue := make([]string, 0, len(cf.Nodes))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range cf.Succs[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return visited != len(cf.Nodes)
}

func reachable(cf *CompiledFlow, from string) map[string]bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range cf.Succs[id] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return seen
}
