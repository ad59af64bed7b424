// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package models

import "time"

// ActionResult is the outcome of one action node for a firing.
type ActionResult struct {
	Action string `json:"action"`
	NodeID string `json:"node_id"`
	OK     bool   `json:"ok"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// AlertRecord is written exactly once per flow firing.
type AlertRecord struct {
	ID              int64          `json:"id"`
	FlowID          string         `json:"flow_id"`
	FlowName        string         `json:"flow_name"`
	Severity        Severity       `json:"severity"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	EventType       string         `json:"event_type"`
	ObjectID        string         `json:"object_id,omitempty"`
	ObjectType      string         `json:"object_type,omitempty"`
	Location        *Location      `json:"location,omitempty"`
	EventData       *Event         `json:"event_data,omitempty"`
	ActionsExecuted []ActionResult `json:"actions_executed"`
	Acknowledged    bool           `json:"acknowledged"`
	AcknowledgedBy  string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Failed reports whether any action in the record failed.
func (a *AlertRecord) Failed() bool {
	for _, r := range a.ActionsExecuted {
		if !r.OK {
			return true
		}
	}
	return false
}

// AlertFilter narrows history queries. Nil pointers are ignored.
type AlertFilter struct {
	Severity     *Severity  `json:"severity,omitempty"`
	ObjectType   *string    `json:"object_type,omitempty"`
	ObjectID     *string    `json:"object_id,omitempty"`
	FlowID       *string    `json:"flow_id,omitempty"`
	Acknowledged *bool      `json:"acknowledged,omitempty"`
	Since        *time.Time `json:"since,omitempty"`
	Until        *time.Time `json:"until,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

const (
	// DefaultHistoryLimit applies when a filter leaves Limit unset.
	DefaultHistoryLimit = 100
	// MaxHistoryLimit caps any single history page.
	MaxHistoryLimit = 1000
)

// NormalizedLimit clamps Limit to (0, MaxHistoryLimit].
func (f *AlertFilter) NormalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultHistoryLimit
	case f.Limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return f.Limit
}

// AlertStats summarizes the last 24 hours of history.
type AlertStats struct {
	BySeverity map[Severity]int `json:"by_severity"`
	Unacked    int              `json:"unacked"`
	Total      int              `json:"total"`
	Latest     *time.Time       `json:"latest,omitempty"`
}

// CooldownRecord is the flow-level suppression state for one object.
type CooldownRecord struct {
	FlowID      string    `json:"flow_id"`
	ObjectID    string    `json:"object_id"`
	LastFiredAt time.Time `json:"last_fired_at"`
	FireCount   int64     `json:"fire_count"`
}
