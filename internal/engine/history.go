// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"context"
	"time"

	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/metrics"
	"github.com/tomtom215/meshguard/internal/models"
)

// HistorySink persists alert records and returns the assigned ID.
type HistorySink interface {
	Record(ctx context.Context, rec *models.AlertRecord) (int64, error)
}

// CooldownStore persists cooldown entries so they survive a restart.
type CooldownStore interface {
	SaveCooldown(ctx context.Context, rec models.CooldownRecord) error
}

// FireCounter updates a flow's last_fired_at and fire_count.
type FireCounter interface {
	RecordFire(ctx context.Context, flowID string, at time.Time) error
}

// DefaultWriteTimeout bounds the persistence calls of one completion.
const DefaultWriteTimeout = 10 * time.Second

// HistoryRecorder finalizes dispatched jobs: it writes the alert record
// and persists the cooldown and fire count. It implements
// dispatch.Completer. cooldowns and fires may be nil.
type HistoryRecorder struct {
	sink      HistorySink
	cooldowns CooldownStore
	fires     FireCounter
	timeout   time.Duration
}

// NewHistoryRecorder creates a recorder.
func NewHistoryRecorder(sink HistorySink, cooldowns CooldownStore, fires FireCounter) *HistoryRecorder {
	return &HistoryRecorder{
		sink:      sink,
		cooldowns: cooldowns,
		fires:     fires,
		timeout:   DefaultWriteTimeout,
	}
}

var _ dispatch.Completer = (*HistoryRecorder)(nil)

// Complete writes the record exactly once. Persistence failures are logged;
// the firing already happened and is not retried here. A zero ID with no
// error means the sink deferred the write.
func (h *HistoryRecorder) Complete(ctx context.Context, job *dispatch.Job) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	rec := job.Record

	if h.sink != nil {
		id, err := h.sink.Record(ctx, rec)
		if err != nil {
			metrics.RecordHistoryWrite("error")
			logging.Error().Err(err).Str("flow_id", rec.FlowID).Str("job_id", job.ID).Msg("Failed to write alert history")
		} else if id == 0 {
			metrics.RecordHistoryWrite("spooled")
		} else {
			rec.ID = id
			metrics.RecordHistoryWrite("ok")
		}
	}

	if h.cooldowns != nil && job.Cooldown.FlowID != "" {
		if err := h.cooldowns.SaveCooldown(ctx, job.Cooldown); err != nil {
			logging.Warn().Err(err).Str("flow_id", rec.FlowID).Msg("Failed to persist cooldown")
		}
	}
	if h.fires != nil {
		if err := h.fires.RecordFire(ctx, rec.FlowID, rec.CreatedAt); err != nil {
			logging.Warn().Err(err).Str("flow_id", rec.FlowID).Msg("Failed to update flow fire count")
		}
	}

	ok, failed := 0, 0
	for _, r := range rec.ActionsExecuted {
		if r.OK {
			ok++
		} else {
			failed++
		}
	}
	logging.Info().
		Int64("alert_id", rec.ID).
		Str("flow_id", rec.FlowID).
		Str("severity", string(rec.Severity)).
		Str("object_id", rec.ObjectID).
		Int("actions_ok", ok).
		Int("actions_failed", failed).
		Msg("Alert fired")
}
