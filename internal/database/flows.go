// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/models"
)

const flowColumns = `id, name, description, enabled, severity, template_id, cooldown_seconds,
	nodes, edges, last_fired_at, fire_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFlow(s rowScanner) (*models.FlowDefinition, error) {
	var (
		f            models.FlowDefinition
		severity     string
		nodes, edges string
		lastFired    sql.NullTime
	)
	if err := s.Scan(&f.ID, &f.Name, &f.Description, &f.Enabled, &severity, &f.TemplateID,
		&f.CooldownSeconds, &nodes, &edges, &lastFired, &f.FireCount, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Severity = models.Severity(severity)
	if err := json.Unmarshal([]byte(nodes), &f.Nodes); err != nil {
		return nil, fmt.Errorf("flow %s: decode nodes: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(edges), &f.Edges); err != nil {
		return nil, fmt.Errorf("flow %s: decode edges: %w", f.ID, err)
	}
	if lastFired.Valid {
		t := lastFired.Time
		f.LastFiredAt = &t
	}
	return &f, nil
}

func encodeGraph(f *models.FlowDefinition) (nodes, edges []byte, err error) {
	if nodes, err = json.Marshal(f.Nodes); err != nil {
		return nil, nil, fmt.Errorf("encode nodes: %w", err)
	}
	if edges, err = json.Marshal(f.Edges); err != nil {
		return nil, nil, fmt.Errorf("encode edges: %w", err)
	}
	return nodes, edges, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ListFlows returns every stored flow ordered by creation time. A row that
// fails to decode is returned as an error so the registry can report it.
func (db *DB) ListFlows(ctx context.Context) (_ []*models.FlowDefinition, err error) {
	start := time.Now()
	defer func() { observe("select", "flows", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+flowColumns+` FROM flows ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer closeWithLog(rows, "flow rows")

	var out []*models.FlowDefinition
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFlow returns one flow or models.ErrFlowNotFound.
func (db *DB) GetFlow(ctx context.Context, id string) (_ *models.FlowDefinition, err error) {
	start := time.Now()
	defer func() { observe("select", "flows", start, err) }()

	f, err := scanFlow(db.conn.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrFlowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow %s: %w", id, err)
	}
	return f, nil
}

// CreateFlow inserts a new flow. The caller assigns the ID and timestamps.
func (db *DB) CreateFlow(ctx context.Context, f *models.FlowDefinition) (err error) {
	start := time.Now()
	defer func() { observe("insert", "flows", start, err) }()

	nodes, edges, err := encodeGraph(f)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO flows (`+flowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Description, f.Enabled, string(f.Severity), f.TemplateID, f.CooldownSeconds,
		string(nodes), string(edges), nullTime(f.LastFiredAt), f.FireCount, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert flow %s: %w", f.ID, err)
	}
	return nil
}

// UpdateFlow replaces the editable fields of an existing flow. Fire
// statistics and created_at are left alone.
func (db *DB) UpdateFlow(ctx context.Context, f *models.FlowDefinition) (err error) {
	start := time.Now()
	defer func() { observe("update", "flows", start, err) }()

	nodes, edges, err := encodeGraph(f)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `UPDATE flows SET
		name = ?, description = ?, enabled = ?, severity = ?, template_id = ?,
		cooldown_seconds = ?, nodes = ?, edges = ?, updated_at = ?
		WHERE id = ?`,
		f.Name, f.Description, f.Enabled, string(f.Severity), f.TemplateID,
		f.CooldownSeconds, string(nodes), string(edges), f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("failed to update flow %s: %w", f.ID, err)
	}
	return requireRow(res, models.ErrFlowNotFound, f.ID)
}

// DeleteFlow removes a flow and its persisted cooldowns. Alert history is
// kept.
func (db *DB) DeleteFlow(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { observe("delete", "flows", start, err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}
	if err = requireRow(res, models.ErrFlowNotFound, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM flow_cooldowns WHERE flow_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cooldowns for %s: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flow delete: %w", err)
	}
	return nil
}

// RecordFire bumps fire_count and last_fired_at. A flow deleted while its
// job was in flight is ignored.
func (db *DB) RecordFire(ctx context.Context, flowID string, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("update", "flows", start, err) }()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE flows SET fire_count = fire_count + 1, last_fired_at = ? WHERE id = ?`, at, flowID)
	if err != nil {
		return fmt.Errorf("failed to record fire for %s: %w", flowID, err)
	}
	return nil
}

// requireRow maps zero affected rows to notFound.
func requireRow(res sql.Result, notFound error, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %v", notFound, id)
	}
	return nil
}
