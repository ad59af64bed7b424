// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Severity levels for flows and alerts.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
	SeveritySystem    Severity = "system"
)

// Severities lists every valid severity in ascending order of urgency.
var Severities = []Severity{SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency, SeveritySystem}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// NodeType is the category of a flow node.
type NodeType string

const (
	NodeTrigger   NodeType = "trigger"
	NodeCondition NodeType = "condition"
	NodeAction    NodeType = "action"
)

// Node is a single vertex of a flow graph.
type Node struct {
	ID       string         `json:"id" validate:"required"`
	Type     NodeType       `json:"type" validate:"required,oneof=trigger condition action"`
	Subtype  string         `json:"subtype"`
	Config   map[string]any `json:"config,omitempty"`
	Position map[string]any `json:"position,omitempty"`
}

// UnmarshalJSON accepts the canonical "subtype" key and the legacy
// trigger_type, condition_type and action_type keys written by older editors.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            string         `json:"id"`
		Type          NodeType       `json:"type"`
		Subtype       string         `json:"subtype"`
		TriggerType   string         `json:"trigger_type"`
		ConditionType string         `json:"condition_type"`
		ActionType    string         `json:"action_type"`
		Config        map[string]any `json:"config"`
		Position      map[string]any `json:"position"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ID = raw.ID
	n.Type = raw.Type
	n.Config = raw.Config
	n.Position = raw.Position
	n.Subtype = raw.Subtype
	if n.Subtype == "" {
		switch raw.Type {
		case NodeTrigger:
			n.Subtype = raw.TriggerType
		case NodeCondition:
			n.Subtype = raw.ConditionType
		case NodeAction:
			n.Subtype = raw.ActionType
		}
	}
	return nil
}

// Edge connects two nodes of the same flow.
type Edge struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

// FlowDefinition is the persisted form of an alerting flow.
type FlowDefinition struct {
	ID              string     `json:"id"`
	Name            string     `json:"name" validate:"required,max=200"`
	Description     string     `json:"description,omitempty"`
	Enabled         bool       `json:"enabled"`
	Severity        Severity   `json:"severity" validate:"required,oneof=info warning critical emergency system"`
	TemplateID      string     `json:"template_id,omitempty"`
	CooldownSeconds int        `json:"cooldown_seconds" validate:"gte=0"`
	Nodes           []Node     `json:"nodes" validate:"required,min=2,dive"`
	Edges           []Edge     `json:"edges" validate:"required,min=1,dive"`
	LastFiredAt     *time.Time `json:"last_fired_at,omitempty"`
	FireCount       int64      `json:"fire_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DefaultCooldownSeconds applies when a new flow omits cooldown_seconds.
const DefaultCooldownSeconds = 300

// Clone deep-copies the definition.
func (f *FlowDefinition) Clone() *FlowDefinition {
	if f == nil {
		return nil
	}
	c := *f
	c.Nodes = make([]Node, len(f.Nodes))
	for i, n := range f.Nodes {
		n.Config = CloneMap(n.Config)
		n.Position = CloneMap(n.Position)
		c.Nodes[i] = n
	}
	c.Edges = append([]Edge(nil), f.Edges...)
	if f.LastFiredAt != nil {
		t := *f.LastFiredAt
		c.LastFiredAt = &t
	}
	return &c
}

// FlowUpdate carries a partial update; nil fields are left unchanged.
type FlowUpdate struct {
	Name            *string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Description     *string   `json:"description,omitempty"`
	Enabled         *bool     `json:"enabled,omitempty"`
	Severity        *Severity `json:"severity,omitempty" validate:"omitempty,oneof=info warning critical emergency system"`
	CooldownSeconds *int      `json:"cooldown_seconds,omitempty" validate:"omitempty,gte=0"`
	Nodes           []Node    `json:"nodes,omitempty" validate:"omitempty,dive"`
	Edges           []Edge    `json:"edges,omitempty" validate:"omitempty,dive"`
}

// Apply returns a copy of def with the update applied.
func (u *FlowUpdate) Apply(def *FlowDefinition) *FlowDefinition {
	out := def.Clone()
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Enabled != nil {
		out.Enabled = *u.Enabled
	}
	if u.Severity != nil {
		out.Severity = *u.Severity
	}
	if u.CooldownSeconds != nil {
		out.CooldownSeconds = *u.CooldownSeconds
	}
	if u.Nodes != nil {
		out.Nodes = u.Nodes
	}
	if u.Edges != nil {
		out.Edges = u.Edges
	}
	return out
}
