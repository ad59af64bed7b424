// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"context"
	"fmt"
)

// DefaultRetentionDays matches the history pruning default.
const DefaultRetentionDays = 90

// DBLogAction makes history logging visible in a flow. The record is
// written for every firing regardless; this only reports the retention.
type DBLogAction struct{}

// NewDBLogAction creates the db_log sink.
func NewDBLogAction() *DBLogAction { return &DBLogAction{} }

// Type implements Action.
func (DBLogAction) Type() string { return "db_log" }

// Execute implements Action.
func (DBLogAction) Execute(_ context.Context, req *ActionRequest) (string, error) {
	days := int(req.Float("retention_days", DefaultRetentionDays))
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return fmt.Sprintf("logged (retention %dd)", days), nil
}
