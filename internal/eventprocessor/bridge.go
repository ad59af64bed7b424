// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/validation"
)

// ErrMalformed marks a payload that can never be processed. The bridge
// acks such messages instead of redelivering them.
var ErrMalformed = errors.New("malformed event payload")

// EventPublisher receives decoded events. *eventbus.Bus satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.Event)
}

// DecodeEvent parses a JSON event envelope.
func DecodeEvent(payload []byte) (*models.Event, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if verr := validation.ValidateStruct(&ev); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, verr)
	}
	return &ev, nil
}

// Bridge forwards stream messages onto the in-process event bus.
type Bridge struct {
	bus EventPublisher
}

// NewBridge creates a bridge publishing to bus.
func NewBridge(bus EventPublisher) *Bridge {
	return &Bridge{bus: bus}
}

// HandleMessage decodes payload and publishes it. Only ErrMalformed is
// returned; bus delivery itself cannot fail.
func (b *Bridge) HandleMessage(ctx context.Context, payload []byte) error {
	ev, err := DecodeEvent(payload)
	if err != nil {
		metrics.RecordIngest("malformed")
		logging.Debug().Err(err).Int("bytes", len(payload)).Msg("Discarding stream message")
		return err
	}
	b.bus.Publish(ctx, ev)
	metrics.RecordIngest("ok")
	return nil
}
