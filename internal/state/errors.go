// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package state

import (
	"fmt"

	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
)

// CorruptionError reports a state entry that failed its consistency check
// and was reset.
type CorruptionError struct {
	Table  string
	Key    string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("state corruption in %s[%s]: %s (entry reset)", e.Table, e.Key, e.Reason)
}

// CorruptionHandler is notified after a corrupt entry has been reset.
type CorruptionHandler func(err *CorruptionError)

// LogCorruption is the default handler: warn and count.
func LogCorruption(err *CorruptionError) {
	metrics.RecordStateReset(err.Table)
	logging.Warn().
		Str("table", err.Table).
		Str("key", err.Key).
		Str("reason", err.Reason).
		Msg("Reset corrupt state entry")
}

func notify(h CorruptionHandler, table, key, reason string) {
	if h == nil {
		h = LogCorruption
	}
	h(&CorruptionError{Table: table, Key: key, Reason: reason})
}
