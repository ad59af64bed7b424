// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// Publisher publishes a payload to a broker topic. Implemented by
// mqtt.Client.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
}

// DefaultAlertTopic is used when a node does not set "topic".
const DefaultAlertTopic = "alerts/fired"

// MQTTAction publishes alerts to the broker.
type MQTTAction struct {
	pub Publisher
}

// NewMQTTAction creates the mqtt sink. pub may be nil when no broker is
// configured.
func NewMQTTAction(pub Publisher) *MQTTAction {
	return &MQTTAction{pub: pub}
}

// Type implements Action.
func (a *MQTTAction) Type() string { return "mqtt" }

// Execute implements Action.
func (a *MQTTAction) Execute(ctx context.Context, req *ActionRequest) (string, error) {
	if a.pub == nil {
		return "", fmt.Errorf("mqtt: no broker: %w", ErrNotConfigured)
	}
	topic := req.String("topic", DefaultAlertTopic)
	qos := req.Float("qos", 1)
	if qos < 0 || qos > 2 {
		return "", fmt.Errorf("mqtt: invalid qos %v", qos)
	}
	retain := req.Bool("retain", false)

	payload, ok := req.Config["payload"].(map[string]any)
	if !ok || len(payload) == 0 {
		payload = defaultPayload(req)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mqtt payload: %w", err)
	}

	if err := a.pub.Publish(ctx, topic, byte(qos), retain, body); err != nil {
		return "", fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return "published to " + topic, nil
}
