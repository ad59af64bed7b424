// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package flows

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
)

func node(id string, typ models.NodeType, subtype string, cfg map[string]any) models.Node {
	return models.Node{ID: id, Type: typ, Subtype: subtype, Config: cfg}
}

func edge(from, to string) models.Edge {
	return models.Edge{From: from, To: to}
}

// simpleFlow is trigger -> ui_alert.
func simpleFlow() *models.FlowDefinition {
	return &models.FlowDefinition{
		ID:              "flow_simple",
		Name:            "Simple",
		Enabled:         true,
		Severity:        models.SeverityWarning,
		CooldownSeconds: 60,
		Nodes: []models.Node{
			node("t1", models.NodeTrigger, "drone.detected", nil),
			node("a1", models.NodeAction, ActionUIAlert, map[string]any{"title": "x"}),
		},
		Edges: []models.Edge{edge("t1", "a1")},
	}
}

func TestCompile_Valid(t *testing.T) {
	t.Parallel()

	def := simpleFlow()
	def.Nodes = append(def.Nodes,
		node("c1", models.NodeCondition, SubtypeThreshold, map[string]any{"field": "data.rssi", "operator": ">=", "value": -70}),
		node("a2", models.NodeAction, ActionDBLog, nil),
	)
	def.Edges = append(def.Edges, edge("t1", "c1"), edge("c1", "a2"), edge("c1", "a2"))

	cf, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if cf.Trigger.Pattern != "drone.detected" {
		t.Errorf("Pattern = %q, want drone.detected", cf.Trigger.Pattern)
	}
	if len(cf.Actions) != 2 || cf.Actions[0].ID != "a1" || cf.Actions[1].ID != "a2" {
		t.Errorf("Actions not in definition order: %+v", cf.Actions)
	}
	if got := cf.Preds["a2"]; len(got) != 1 {
		t.Errorf("duplicate edge not collapsed, preds = %v", got)
	}
	th, ok := cf.Nodes["c1"].Condition.(*ThresholdCondition)
	if !ok {
		t.Fatalf("c1 condition = %T, want *ThresholdCondition", cf.Nodes["c1"].Condition)
	}
	if th.Op != OpGTE || th.Value != -70 || !th.HasValue {
		t.Errorf("threshold = %+v", th)
	}
	if cf.Cooldown() != time.Minute {
		t.Errorf("Cooldown = %v, want 1m", cf.Cooldown())
	}

	def.Nodes[0].Subtype = "aircraft.updated"
	if cf.Trigger.Category != "drone" {
		t.Error("compiled flow must not alias the input definition")
	}
}

func TestCompile_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(d *models.FlowDefinition)
		problem string
	}{
		{
			name:    "bad severity",
			mutate:  func(d *models.FlowDefinition) { d.Severity = "loud" },
			problem: "invalid severity",
		},
		{
			name:    "negative cooldown",
			mutate:  func(d *models.FlowDefinition) { d.CooldownSeconds = -1 },
			problem: "cooldown_seconds",
		},
		{
			name: "no trigger",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes[0].Type = models.NodeCondition
				d.Nodes[0].Subtype = SubtypeLogic
			},
			problem: "no trigger",
		},
		{
			name: "two triggers",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("t2", models.NodeTrigger, "aircraft.updated", nil))
				d.Edges = append(d.Edges, edge("t2", "a1"))
			},
			problem: "2 trigger nodes",
		},
		{
			name: "no action",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = d.Nodes[:1]
				d.Edges = nil
			},
			problem: "no action",
		},
		{
			name: "duplicate node id",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("a1", models.NodeAction, ActionDBLog, nil))
			},
			problem: "duplicate node id",
		},
		{
			name:    "unknown action subtype",
			mutate:  func(d *models.FlowDefinition) { d.Nodes[1].Subtype = "carrier_pigeon" },
			problem: "unknown action subtype",
		},
		{
			name: "unknown condition subtype",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("c1", models.NodeCondition, "horoscope", nil))
				d.Edges = append(d.Edges, edge("t1", "c1"))
			},
			problem: "unknown condition subtype",
		},
		{
			name:    "edge to unknown node",
			mutate:  func(d *models.FlowDefinition) { d.Edges = append(d.Edges, edge("t1", "ghost")) },
			problem: "edge to unknown node",
		},
		{
			name:    "edge into trigger",
			mutate:  func(d *models.FlowDefinition) { d.Edges = append(d.Edges, edge("a1", "t1")) },
			problem: "incoming edge",
		},
		{
			name: "edge out of action",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("a2", models.NodeAction, ActionDBLog, nil))
				d.Edges = append(d.Edges, edge("a1", "a2"))
			},
			problem: "outgoing edge",
		},
		{
			name: "cycle",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes,
					node("c1", models.NodeCondition, SubtypeLogic, map[string]any{"operator": "OR"}),
					node("c2", models.NodeCondition, SubtypeLogic, map[string]any{"operator": "OR"}),
				)
				d.Edges = append(d.Edges, edge("t1", "c1"), edge("c1", "c2"), edge("c2", "c1"))
			},
			problem: "cycle",
		},
		{
			name: "unreachable action",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("a2", models.NodeAction, ActionDBLog, nil))
			},
			problem: "not reachable",
		},
		{
			name: "second root condition",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes,
					node("c1", models.NodeCondition, SubtypeThreshold, map[string]any{"field": "rssi", "value": 1}),
					node("c9", models.NodeCondition, SubtypeThreshold, map[string]any{"field": "rssi", "value": 2}),
					node("l1", models.NodeCondition, SubtypeLogic, map[string]any{"operator": "AND"}),
				)
				d.Edges = []models.Edge{edge("t1", "c1"), edge("c1", "l1"), edge("c9", "l1"), edge("l1", "a1")}
			},
			problem: "c9: condition is not reachable",
		},
		{
			name: "dangling condition",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("c1", models.NodeCondition, SubtypeThreshold, map[string]any{"field": "rssi", "value": 1}))
			},
			problem: "condition is not reachable",
		},
		{
			name: "NOT with two inputs",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes,
					node("c1", models.NodeCondition, SubtypeThreshold, map[string]any{"field": "rssi", "value": 1}),
					node("n1", models.NodeCondition, SubtypeLogic, map[string]any{"operator": "not"}),
				)
				d.Edges = append(d.Edges, edge("t1", "c1"), edge("t1", "n1"), edge("c1", "n1"), edge("n1", "a1"))
			},
			problem: "NOT requires exactly one input",
		},
		{
			name: "invalid regex",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("c1", models.NodeCondition, SubtypeObjectMatch,
					map[string]any{"operator": "regex", "value": "(unclosed"}))
				d.Edges = append(d.Edges, edge("t1", "c1"), edge("c1", "a1"))
			},
			problem: "invalid regex",
		},
		{
			name: "between without max",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("c1", models.NodeCondition, SubtypeThreshold,
					map[string]any{"field": "rssi", "operator": "between", "value": 1}))
				d.Edges = append(d.Edges, edge("t1", "c1"), edge("c1", "a1"))
			},
			problem: "value_max",
		},
		{
			name: "state in_zone without zone",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("c1", models.NodeCondition, SubtypeStateCheck,
					map[string]any{"check": "in_zone"}))
				d.Edges = append(d.Edges, edge("t1", "c1"), edge("c1", "a1"))
			},
			problem: "requires zone_id",
		},
		{
			name: "geofence without area",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("c1", models.NodeCondition, SubtypeGeofence, nil))
				d.Edges = append(d.Edges, edge("t1", "c1"), edge("c1", "a1"))
			},
			problem: "zone_id or point",
		},
		{
			name: "bad timezone",
			mutate: func(d *models.FlowDefinition) {
				d.Nodes = append(d.Nodes, node("c1", models.NodeCondition, SubtypeTimeFilter,
					map[string]any{"timezone": "Mars/Olympus"}))
				d.Edges = append(d.Edges, edge("t1", "c1"), edge("c1", "a1"))
			},
			problem: "unknown timezone",
		},
		{
			name:    "bad trigger subtype",
			mutate:  func(d *models.FlowDefinition) { d.Nodes[0].Subtype = "Drone Detected" },
			problem: "invalid trigger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			def := simpleFlow()
			tt.mutate(def)

			_, err := Compile(def)
			if err == nil {
				t.Fatal("Compile() error = nil, want configuration error")
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("error type = %T, want *ConfigurationError", err)
			}
			if cerr.FlowID != "flow_simple" {
				t.Errorf("FlowID = %q", cerr.FlowID)
			}
			if !strings.Contains(err.Error(), tt.problem) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.problem)
			}
		})
	}
}

func TestCompile_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	def := simpleFlow()
	def.Severity = "bogus"
	def.Nodes[1].Subtype = "bogus"

	_, err := Compile(def)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *ConfigurationError", err)
	}
	if len(cerr.Problems) != 2 {
		t.Errorf("problems = %v, want 2", cerr.Problems)
	}
}

func TestCompileTrigger_Patterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		subtype string
		cfg     map[string]any
		want    string
	}{
		{"drone.detected", nil, "drone.detected"},
		{"drone", nil, "drone.*"},
		{"drone", map[string]any{"event": "zone_entry"}, "drone.zone_entry"},
		{"aircraft.updated", map[string]any{"event": "*"}, "aircraft.*"},
		{"lightning.strike", map[string]any{"event": "strike"}, "lightning.strike"},
	}
	for _, tt := range tests {
		var p problems
		n := node("t1", models.NodeTrigger, tt.subtype, tt.cfg)
		if n.Config == nil {
			n.Config = map[string]any{}
		}
		got := compileTrigger(&n, &p)
		if len(p) != 0 {
			t.Errorf("%s: unexpected problems %v", tt.subtype, p)
		}
		if got.Pattern != tt.want {
			t.Errorf("%s %v: Pattern = %q, want %q", tt.subtype, tt.cfg, got.Pattern, tt.want)
		}
	}
}

func TestWildcard(t *testing.T) {
	t.Parallel()

	var p problems
	re := wildcard("t1", "match_callsign", "BAW*", &p)
	if re == nil || len(p) != 0 {
		t.Fatalf("wildcard() = %v, problems %v", re, p)
	}
	for s, want := range map[string]bool{"BAW123": true, "baw9": true, "XBAW1": false, "BA": false} {
		if got := re.MatchString(s); got != want {
			t.Errorf("match %q = %v, want %v", s, got, want)
		}
	}

	dot := wildcard("t1", "match_name", "M.V*", &p)
	if dot.MatchString("MXV ATLAS") {
		t.Error("dot must be literal")
	}
	if !dot.MatchString("M.V ATLAS") {
		t.Error("literal dot should match")
	}
}

func TestCompileCondition_Defaults(t *testing.T) {
	t.Parallel()

	var p problems
	rl := compileCondition(&models.Node{ID: "r", Type: models.NodeCondition, Subtype: SubtypeRateLimit, Config: map[string]any{}}, &p).(*RateLimitCondition)
	if rl.MaxEvents != 1 || rl.Window != 5*time.Minute || !rl.PerObject {
		t.Errorf("rate_limit defaults = %+v", rl)
	}

	rl = compileCondition(&models.Node{ID: "r", Type: models.NodeCondition, Subtype: SubtypeRateLimit,
		Config: map[string]any{"max_fires": 3, "window_minutes": 10, "per_object": false}}, &p).(*RateLimitCondition)
	if rl.MaxEvents != 3 || rl.Window != 10*time.Minute || rl.PerObject {
		t.Errorf("rate_limit legacy keys = %+v", rl)
	}

	tf := compileCondition(&models.Node{ID: "tf", Type: models.NodeCondition, Subtype: SubtypeTimeFilter,
		Config: map[string]any{"start_time": "22:00", "end_time": "06:00", "days_of_week": []any{5.0, 6.0}}}, &p).(*TimeFilterCondition)
	if tf.Location.String() != "Europe/London" {
		t.Errorf("default timezone = %s", tf.Location)
	}
	if !tf.HasWindow || tf.StartMin != 22*60 || tf.EndMin != 6*60 {
		t.Errorf("window = %+v", tf)
	}
	if tf.Days[0] || !tf.Days[5] || !tf.Days[6] {
		t.Errorf("days = %v", tf.Days)
	}

	d := compileCondition(&models.Node{ID: "d", Type: models.NodeCondition, Subtype: SubtypeDuration,
		Config: map[string]any{"check": "stationary", "min_duration_seconds": 90}}, &p).(*DurationCondition)
	if d.SpeedThreshold != 0.5 || d.MinDuration != 90*time.Second {
		t.Errorf("duration = %+v", d)
	}

	g := compileCondition(&models.Node{ID: "g", Type: models.NodeCondition, Subtype: SubtypeGeofence,
		Config: map[string]any{"zone_id": "z1", "inside": false}}, &p).(*GeofenceCondition)
	if g.Check != CheckObjectOutside || g.WantInside() {
		t.Errorf("inside:false should select object_outside, got %s", g.Check)
	}

	lg := compileCondition(&models.Node{ID: "l", Type: models.NodeCondition, Subtype: SubtypeLogic, Config: map[string]any{}}, &p).(*LogicCondition)
	if lg.Op != LogicAND {
		t.Errorf("logic default = %s, want AND", lg.Op)
	}

	if len(p) != 0 {
		t.Errorf("unexpected problems: %v", p)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"23:59", 23*60 + 59, false},
		{"7:05", 7*60 + 5, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
