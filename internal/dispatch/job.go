// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"context"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/templating"
)

// Action is a thin adapter to one external sink.
type Action interface {
	// Type returns the action subtype this adapter serves, e.g. "webhook".
	Type() string
	// Execute performs the side effect and returns a short result string.
	// It must honor ctx cancellation.
	Execute(ctx context.Context, req *ActionRequest) (string, error)
}

// TimeoutAction is implemented by actions whose default timeout differs
// from the dispatcher default.
type TimeoutAction interface {
	DefaultTimeout() time.Duration
}

// ActionRequest is everything an adapter may use. All values are detached
// copies; adapters never see live engine state.
type ActionRequest struct {
	NodeID string
	Type   string
	// Config is the node config with every {{token}} already resolved.
	Config  map[string]any
	Context templating.Context
	Event   *models.Event

	FlowID   string
	FlowName string
	Severity models.Severity
	// Title and Message are the alert-level texts recorded in history.
	Title   string
	Message string
}

// String returns a config value as a string, or def when absent.
func (r *ActionRequest) String(key, def string) string {
	v, ok := r.Config[key]
	if !ok || v == nil {
		return def
	}
	if s := models.ToString(v); s != "" {
		return s
	}
	return def
}

// Bool returns a config flag, or def when absent.
func (r *ActionRequest) Bool(key string, def bool) bool {
	v, ok := r.Config[key]
	if !ok || v == nil {
		return def
	}
	return models.ToBool(v)
}

// Float returns a numeric config value, or def when absent or invalid.
func (r *ActionRequest) Float(key string, def float64) float64 {
	v, ok := r.Config[key]
	if !ok || v == nil {
		return def
	}
	if f, ok := models.ToFloat(v); ok {
		return f
	}
	return def
}

// Job is one flow firing: the pre-filled alert record plus the actions to
// execute. The dispatcher fills Record.ActionsExecuted.
type Job struct {
	ID       string
	Record   *models.AlertRecord
	Requests []*ActionRequest
	// Cooldown is the gate state recorded when the firing was admitted.
	Cooldown models.CooldownRecord
	Enqueued time.Time
}

// Completer finalizes a job after every action finished or failed. It is
// called exactly once per submitted job, including rejected ones.
type Completer interface {
	Complete(ctx context.Context, job *Job)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, job *Job)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, job *Job) { f(ctx, job) }

// Observer is notified after a job completes.
type Observer interface {
	AlertDispatched(ctx context.Context, record *models.AlertRecord)
}
