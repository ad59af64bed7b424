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
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/models"
)

const alertColumns = `id, flow_id, flow_name, severity, title, message, event_type, object_id,
	object_type, lat, lon, alt, event_data, actions_executed, acknowledged, acknowledged_by,
	acknowledged_at, created_at`

// Record inserts an alert and returns its ID.
func (db *DB) Record(ctx context.Context, rec *models.AlertRecord) (_ int64, err error) {
	start := time.Now()
	defer func() { observe("insert", "alert_history", start, err) }()

	var lat, lon, alt sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: rec.Location.Lon, Valid: true}
		alt = sql.NullFloat64{Float64: rec.Location.Alt, Valid: true}
	}
	var eventData sql.NullString
	if rec.EventData != nil {
		b, err := json.Marshal(rec.EventData)
		if err != nil {
			return 0, fmt.Errorf("encode event data: %w", err)
		}
		eventData = sql.NullString{String: string(b), Valid: true}
	}
	actions := rec.ActionsExecuted
	if actions == nil {
		actions = []models.ActionResult{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return 0, fmt.Errorf("encode actions: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = db.now()
	}

	var id int64
	err = db.conn.QueryRowContext(ctx, `INSERT INTO alert_history
		(flow_id, flow_name, severity, title, message, event_type, object_id, object_type,
		 lat, lon, alt, event_data, actions_executed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		rec.FlowID, rec.FlowName, string(rec.Severity), rec.Title, rec.Message, rec.EventType,
		rec.ObjectID, rec.ObjectType, lat, lon, alt, eventData, string(actionsJSON), created,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return id, nil
}

func scanAlert(s rowScanner) (*models.AlertRecord, error) {
	var (
		a             models.AlertRecord
		severity      string
		lat, lon, alt sql.NullFloat64
		eventData     sql.NullString
		actions       string
		ackBy         sql.NullString
		ackAt         sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.FlowID, &a.FlowName, &severity, &a.Title, &a.Message, &a.EventType,
		&a.ObjectID, &a.ObjectType, &lat, &lon, &alt, &eventData, &actions, &a.Acknowledged,
		&ackBy, &ackAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Severity = models.Severity(severity)
	if lat.Valid && lon.Valid {
		a.Location = &models.Location{Lat: lat.Float64, Lon: lon.Float64, Alt: alt.Float64}
	}
	if eventData.Valid && eventData.String != "" {
		var ev models.Event
		if err := json.Unmarshal([]byte(eventData.String), &ev); err != nil {
			return nil, fmt.Errorf("alert %d: decode event data: %w", a.ID, err)
		}
		a.EventData = &ev
	}
	if err := json.Unmarshal([]byte(actions), &a.ActionsExecuted); err != nil {
		return nil, fmt.Errorf("alert %d: decode actions: %w", a.ID, err)
	}
	a.AcknowledgedBy = ackBy.String
	if ackAt.Valid {
		t := ackAt.Time
		a.AcknowledgedAt = &t
	}
	return &a, nil
}

// buildAlertQuery renders filter as a parameterized WHERE clause.
func buildAlertQuery(filter models.AlertFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		where = append(where, clause)
		args = append(args, v)
	}
	if filter.Severity != nil {
		add("severity = ?", string(*filter.Severity))
	}
	if filter.ObjectType != nil {
		add("object_type = ?", *filter.ObjectType)
	}
	if filter.ObjectID != nil {
		add("object_id = ?", *filter.ObjectID)
	}
	if filter.FlowID != nil {
		add("flow_id = ?", *filter.FlowID)
	}
	if filter.Acknowledged != nil {
		add("acknowledged = ?", *filter.Acknowledged)
	}
	if filter.Since != nil {
		add("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		add("created_at <= ?", *filter.Until)
	}

	q := `SELECT ` + alertColumns + ` FROM alert_history`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.NormalizedLimit(), offset)
	return q, args
}

// QueryAlerts returns history newest first.
func (db *DB) QueryAlerts(ctx context.Context, filter models.AlertFilter) (_ []*models.AlertRecord, err error) {
	start := time.Now()
	defer func() { observe("select", "alert_history", start, err) }()

	q, args := buildAlertQuery(filter)
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer closeWithLog(rows, "alert rows")

	out := make([]*models.AlertRecord, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAlert returns one alert or models.ErrAlertNotFound.
func (db *DB) GetAlert(ctx context.Context, id int64) (*models.AlertRecord, error) {
	a, err := scanAlert(db.conn.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alert_history WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", models.ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return a, nil
}

// AcknowledgeAlert marks one alert acknowledged. Acknowledging twice
// overwrites who and when.
func (db *DB) AcknowledgeAlert(ctx context.Context, id int64, by string) (err error) {
	start := time.Now()
	defer func() { observe("update", "alert_history", start, err) }()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE alert_history SET acknowledged = true, acknowledged_by = ?, acknowledged_at = ? WHERE id = ?`,
		by, db.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	return requireRow(res, models.ErrAlertNotFound, id)
}

// AcknowledgeAll acknowledges every open alert, optionally only those of
// one severity, and returns how many changed.
func (db *DB) AcknowledgeAll(ctx context.Context, severity *models.Severity, by string) (_ int64, err error) {
	start := time.Now()
	defer func() { observe("update", "alert_history", start, err) }()

	q := `UPDATE alert_history SET acknowledged = true, acknowledged_by = ?, acknowledged_at = ?
		WHERE acknowledged = false`
	args := []interface{}{by, db.now().UTC()}
	if severity != nil {
		q += " AND severity = ?"
		args = append(args, string(*severity))
	}
	res, err := db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// AlertStats summarizes alerts created at or after since.
func (db *DB) AlertStats(ctx context.Context, since time.Time) (_ *models.AlertStats, err error) {
	start := time.Now()
	defer func() { observe("select", "alert_history", start, err) }()

	stats := &models.AlertStats{BySeverity: make(map[models.Severity]int)}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM alert_history WHERE created_at >= ? GROUP BY severity`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert stats: %w", err)
	}
	for rows.Next() {
		var (
			sev string
			n   int
		)
		if err := rows.Scan(&sev, &n); err != nil {
			closeQuietly(rows)
			return nil, fmt.Errorf("failed to scan alert stats: %w", err)
		}
		stats.BySeverity[models.Severity(sev)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return nil, err
	}
	closeWithLog(rows, "stats rows")

	var latest sql.NullTime
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FILTER (WHERE NOT acknowledged), MAX(created_at) FROM alert_history WHERE created_at >= ?`,
		since).Scan(&stats.Unacked, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query unacknowledged alerts: %w", err)
	}
	if latest.Valid {
		t := latest.Time
		stats.Latest = &t
	}
	return stats, nil
}

// DeleteOlderThan prunes history created before cutoff.
func (db *DB) DeleteOlderThan(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	start := time.Now()
	defer func() { observe("delete", "alert_history", start, err) }()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM alert_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alert history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
