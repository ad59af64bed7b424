// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"fmt"

	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/state"
)

// Error taxonomy. Only ConfigurationError ever reaches an admin caller from
// evaluation code; the others are recorded and absorbed.
type (
	// ConfigurationError is a malformed flow, rejected at load or save.
	ConfigurationError = flows.ConfigurationError
	// DispatchError is a per-action sink failure.
	DispatchError = dispatch.DispatchError
	// StateCorruptionError is an inconsistent state entry that was reset.
	StateCorruptionError = state.CorruptionError
)

// Sentinel errors for the admin surface.
var (
	ErrFlowNotFound     = models.ErrFlowNotFound
	ErrAlertNotFound    = models.ErrAlertNotFound
	ErrTemplateNotFound = flows.ErrTemplateNotFound
	ErrQueueFull        = dispatch.ErrQueueFull
)

// EvaluationError is a node that could not be evaluated against an event,
// e.g. a missing or non-numeric field. The node is treated as failed.
type EvaluationError struct {
	FlowID  string
	NodeID  string
	Subtype string
	Reason  string
	Err     error
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("flow %s node %s (%s): %s", e.FlowID, e.NodeID, e.Subtype, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
