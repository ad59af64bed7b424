// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/meshguard/internal/logging"
)

// Migration is one versioned schema change. Migrations are append-only.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// baseSchema is the version-0 schema. Later changes go in migrations.
var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS flows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT true,
		severity TEXT NOT NULL,
		template_id TEXT NOT NULL DEFAULT '',
		cooldown_seconds INTEGER NOT NULL DEFAULT 300,
		nodes TEXT NOT NULL,
		edges TEXT NOT NULL,
		last_fired_at TIMESTAMP,
		fire_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE SEQUENCE IF NOT EXISTS alert_history_id_seq START 1`,

	`CREATE TABLE IF NOT EXISTS alert_history (
		id BIGINT PRIMARY KEY DEFAULT nextval('alert_history_id_seq'),
		flow_id TEXT NOT NULL,
		flow_name TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		object_id TEXT NOT NULL DEFAULT '',
		object_type TEXT NOT NULL DEFAULT '',
		lat DOUBLE,
		lon DOUBLE,
		alt DOUBLE,
		event_data TEXT,
		actions_executed TEXT NOT NULL DEFAULT '[]',
		acknowledged BOOLEAN NOT NULL DEFAULT false,
		acknowledged_by TEXT,
		acknowledged_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS flow_cooldowns (
		flow_id TEXT NOT NULL,
		object_id TEXT NOT NULL,
		last_fired_at TIMESTAMP NOT NULL,
		fire_count BIGINT NOT NULL DEFAULT 1,
		PRIMARY KEY (flow_id, object_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_alert_history_created_at ON alert_history(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_history_flow_id ON alert_history(flow_id)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_history_severity ON alert_history(severity)`,
}

// migrations returns versioned changes on top of baseSchema, in order.
func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "alert_history_object_index",
			Description: "Index history by object for per-object lookups",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_alert_history_object ON alert_history(object_type, object_id)`,
		},
	}
}

func (db *DB) initialize(ctx context.Context) error {
	for _, q := range baseSchema {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	if err := db.runMigrations(ctx); err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}
	return nil
}

func (db *DB) runMigrations(ctx context.Context) error {
	applied := make(map[int]bool)
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			closeQuietly(rows)
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	closeWithLog(rows, "migration rows")

	n := 0
	for _, m := range migrations() {
		if applied[m.Version] {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		n++
	}
	if n > 0 {
		logging.Info().Int("applied", n).Msg("Applied database migrations")
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	var v int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
