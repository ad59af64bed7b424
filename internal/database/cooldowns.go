// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
)

// SaveCooldown upserts the gate state for one (flow, object) pair.
func (db *DB) SaveCooldown(ctx context.Context, rec models.CooldownRecord) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "flow_cooldowns", start, err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO flow_cooldowns (flow_id, object_id, last_fired_at, fire_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (flow_id, object_id) DO UPDATE SET
			last_fired_at = excluded.last_fired_at,
			fire_count = excluded.fire_count`,
		rec.FlowID, rec.ObjectID, rec.LastFiredAt, rec.FireCount)
	if err != nil {
		return fmt.Errorf("failed to save cooldown %s/%s: %w", rec.FlowID, rec.ObjectID, err)
	}
	return nil
}

// LoadCooldowns returns cooldowns that fired at or after since. Older
// entries cannot still be suppressing anything.
func (db *DB) LoadCooldowns(ctx context.Context, since time.Time) (_ []models.CooldownRecord, err error) {
	start := time.Now()
	defer func() { observe("select", "flow_cooldowns", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT flow_id, object_id, last_fired_at, fire_count
		FROM flow_cooldowns WHERE last_fired_at >= ? ORDER BY flow_id, object_id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query cooldowns: %w", err)
	}
	defer closeWithLog(rows, "cooldown rows")

	var out []models.CooldownRecord
	for rows.Next() {
		var rec models.CooldownRecord
		if err := rows.Scan(&rec.FlowID, &rec.ObjectID, &rec.LastFiredAt, &rec.FireCount); err != nil {
			return nil, fmt.Errorf("failed to scan cooldown: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneCooldowns deletes entries last fired before cutoff.
func (db *DB) PruneCooldowns(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	start := time.Now()
	defer func() { observe("delete", "flow_cooldowns", start, err) }()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM flow_cooldowns WHERE last_fired_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cooldowns: %w", err)
	}
	return res.RowsAffected()
}
