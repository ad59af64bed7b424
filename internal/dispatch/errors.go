// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by Submit when every worker is busy and the
	// queue is at capacity.
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrStopped is returned by Submit after the dispatcher shut down.
	ErrStopped = errors.New("dispatcher stopped")

	// ErrNoSink marks an action whose type has no registered adapter.
	ErrNoSink = errors.New("no sink registered")

	// ErrActionTimeout marks an action that did not finish in time.
	ErrActionTimeout = errors.New("action timed out")

	// ErrNotConfigured marks a sink missing required settings.
	ErrNotConfigured = errors.New("sink not configured")
)

// DispatchError is a per-action failure. Sibling actions and the alert
// record are unaffected.
type DispatchError struct {
	Action string
	NodeID string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("action %s (node %s): %v", e.Action, e.NodeID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
