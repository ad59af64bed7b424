// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Broadcaster pushes a typed message to every connected UI client.
// Implemented by the websocket hub.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// UIAlertMessageType is the websocket message type for fired alerts.
const UIAlertMessageType = "alert_fired"

// UIAlertPayload is the message body seen by browser clients.
type UIAlertPayload struct {
	ID                 string   `json:"id"`
	FlowID             string   `json:"flow_id"`
	FlowName           string   `json:"flow_name"`
	Severity           string   `json:"severity"`
	Title              string   `json:"title"`
	Message            string   `json:"message"`
	EventType          string   `json:"event_type"`
	ObjectID           string   `json:"object_id"`
	ObjectType         string   `json:"object_type"`
	Lat                *float64 `json:"lat"`
	Lon                *float64 `json:"lon"`
	Alt                *float64 `json:"alt"`
	Timestamp          string   `json:"timestamp"`
	Sound              string   `json:"sound"`
	HighlightObject    bool     `json:"highlight_object"`
	FlyTo              bool     `json:"fly_to"`
	AutoDismissSeconds *float64 `json:"auto_dismiss_seconds"`
	Acknowledged       bool     `json:"acknowledged"`
}

// UIAlertAction broadcasts alerts to the live map.
type UIAlertAction struct {
	hub Broadcaster
}

// NewUIAlertAction creates the ui_alert sink. hub may be nil when the
// HTTP layer is disabled; Execute then fails with ErrNotConfigured.
func NewUIAlertAction(hub Broadcaster) *UIAlertAction {
	return &UIAlertAction{hub: hub}
}

// Type implements Action.
func (a *UIAlertAction) Type() string { return "ui_alert" }

// Execute implements Action.
func (a *UIAlertAction) Execute(ctx context.Context, req *ActionRequest) (string, error) {
	if a.hub == nil {
		return "", fmt.Errorf("ui_alert: %w", ErrNotConfigured)
	}
	payload := BuildUIAlertPayload(req)
	a.hub.BroadcastJSON(UIAlertMessageType, payload)
	return "broadcast " + payload.ID, nil
}

// BuildUIAlertPayload renders the alert_fired message for a request.
func BuildUIAlertPayload(req *ActionRequest) UIAlertPayload {
	title := req.String("title", req.Title)
	if title == "" {
		title = req.FlowName
	}
	p := UIAlertPayload{
		ID:              "alert_" + uuid.NewString(),
		FlowID:          req.FlowID,
		FlowName:        req.FlowName,
		Severity:        req.String("severity", string(req.Severity)),
		Title:           title,
		Message:         req.String("message", ""),
		Timestamp:       req.Context["timestamp"],
		Sound:           req.String("sound", "default"),
		HighlightObject: req.Bool("highlight_object", true),
		FlyTo:           req.Bool("fly_to", false),
	}
	if ev := req.Event; ev != nil {
		p.EventType = ev.EventType
		p.ObjectID = ev.ObjectID
		p.ObjectType = ev.ObjectType
		if loc := ev.Location; loc != nil {
			lat, lon, alt := loc.Lat, loc.Lon, loc.Alt
			p.Lat, p.Lon, p.Alt = &lat, &lon, &alt
		}
	}
	if secs := req.Float("auto_dismiss_seconds", -1); secs >= 0 {
		p.AutoDismissSeconds = &secs
	}
	return p
}
