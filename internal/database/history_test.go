// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
)

func alert(flowID string, sev models.Severity, objectType, objectID string, at time.Time) *models.AlertRecord {
	return &models.AlertRecord{
		FlowID:     flowID,
		FlowName:   "Flow " + flowID,
		Severity:   sev,
		Title:      "Alert " + objectID,
		Message:    "seen",
		EventType:  objectType + ".detected",
		ObjectID:   objectID,
		ObjectType: objectType,
		CreatedAt:  at,
	}
}

func seedHistory(t *testing.T, db *DB) []int64 {
	t.Helper()
	ctx := context.Background()
	recs := []*models.AlertRecord{
		alert("flow_a", models.SeverityCritical, "drone", "d1", t0.Add(-3*time.Hour)),
		alert("flow_a", models.SeverityCritical, "drone", "d2", t0.Add(-2*time.Hour)),
		alert("flow_b", models.SeverityWarning, "aircraft", "a1", t0.Add(-1*time.Hour)),
		alert("flow_b", models.SeverityInfo, "vessel", "v1", t0.Add(-30*time.Hour)),
	}
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		id, err := db.Record(ctx, r)
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestHistory_RecordRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := alert("flow_a", models.SeverityEmergency, "drone", "AA:BB", t0)
	rec.Location = &models.Location{Lat: 55.87, Lon: -4.43, Alt: 120}
	rec.EventData = &models.Event{
		EventType: "drone.detected", Source: "wifi", Timestamp: float64(t0.Unix()),
		ObjectID: "AA:BB", ObjectType: "drone", Data: map[string]any{"rssi": -60.0},
	}
	rec.ActionsExecuted = []models.ActionResult{
		{Action: "ui_alert", NodeID: "a1", OK: true, Result: "broadcast"},
		{Action: "webhook", NodeID: "a2", OK: false, Error: "timeout"},
	}

	id, err := db.Record(ctx, rec)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("Record() id = %d", id)
	}
	second, _ := db.Record(ctx, alert("flow_a", models.SeverityInfo, "drone", "x", t0))
	if second <= id {
		t.Errorf("ids not increasing: %d then %d", id, second)
	}

	got, err := db.GetAlert(ctx, id)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if got.Severity != models.SeverityEmergency || got.Title != "Alert AA:BB" || !got.CreatedAt.Equal(t0) {
		t.Errorf("GetAlert() = %+v", got)
	}
	if got.Location == nil || got.Location.Lat != 55.87 || got.Location.Alt != 120 {
		t.Errorf("location = %+v", got.Location)
	}
	if got.EventData == nil || got.EventData.Source != "wifi" || got.EventData.Data["rssi"] != -60.0 {
		t.Errorf("event data = %+v", got.EventData)
	}
	if len(got.ActionsExecuted) != 2 || got.ActionsExecuted[1].Error != "timeout" {
		t.Errorf("actions = %+v", got.ActionsExecuted)
	}
	if got.Acknowledged || got.AcknowledgedAt != nil {
		t.Error("new alert is acknowledged")
	}

	if _, err := db.GetAlert(ctx, 9999); !errors.Is(err, models.ErrAlertNotFound) {
		t.Errorf("GetAlert(missing) error = %v", err)
	}
}

func TestHistory_RecordDefaultsCreatedAt(t *testing.T) {
	db := setupTestDB(t)
	rec := alert("flow_a", models.SeverityInfo, "system", "", time.Time{})
	id, err := db.Record(context.Background(), rec)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	got, _ := db.GetAlert(context.Background(), id)
	if !got.CreatedAt.Equal(t0) || got.Location != nil || got.EventData != nil {
		t.Errorf("GetAlert() = %+v", got)
	}
	if got.ActionsExecuted == nil {
		t.Error("actions decoded as nil, want empty slice")
	}
}

func TestHistory_QueryFilters(t *testing.T) {
	db := setupTestDB(t)
	seedHistory(t, db)
	ctx := context.Background()

	sev := models.SeverityCritical
	objType := "aircraft"
	objID := "d1"
	flowID := "flow_b"
	since := t0.Add(-24 * time.Hour)
	until := t0.Add(-90 * time.Minute)
	unacked := false

	tests := []struct {
		name   string
		filter models.AlertFilter
		want   []string
	}{
		{"all newest first", models.AlertFilter{}, []string{"a1", "d2", "d1", "v1"}},
		{"severity", models.AlertFilter{Severity: &sev}, []string{"d2", "d1"}},
		{"object type", models.AlertFilter{ObjectType: &objType}, []string{"a1"}},
		{"object id", models.AlertFilter{ObjectID: &objID}, []string{"d1"}},
		{"flow", models.AlertFilter{FlowID: &flowID}, []string{"a1", "v1"}},
		{"since", models.AlertFilter{Since: &since}, []string{"a1", "d2", "d1"}},
		{"since until", models.AlertFilter{Since: &since, Until: &until}, []string{"d2", "d1"}},
		{"unacknowledged", models.AlertFilter{Acknowledged: &unacked}, []string{"a1", "d2", "d1", "v1"}},
		{"limit", models.AlertFilter{Limit: 2}, []string{"a1", "d2"}},
		{"offset", models.AlertFilter{Limit: 2, Offset: 2}, []string{"d1", "v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.QueryAlerts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("QueryAlerts() error = %v", err)
			}
			ids := make([]string, 0, len(got))
			for _, a := range got {
				ids = append(ids, a.ObjectID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("QueryAlerts() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestBuildAlertQuery_ClampsLimit(t *testing.T) {
	t.Parallel()

	_, args := buildAlertQuery(models.AlertFilter{Limit: 5000, Offset: -3})
	if len(args) != 2 || args[0] != models.MaxHistoryLimit || args[1] != 0 {
		t.Errorf("args = %v", args)
	}
	_, args = buildAlertQuery(models.AlertFilter{})
	if args[0] != models.DefaultHistoryLimit {
		t.Errorf("default limit = %v", args[0])
	}
}

func TestHistory_Acknowledge(t *testing.T) {
	db := setupTestDB(t)
	ids := seedHistory(t, db)
	ctx := context.Background()

	if err := db.AcknowledgeAlert(ctx, ids[0], "ops"); err != nil {
		t.Fatalf("AcknowledgeAlert() error = %v", err)
	}
	got, _ := db.GetAlert(ctx, ids[0])
	if !got.Acknowledged || got.AcknowledgedBy != "ops" || got.AcknowledgedAt == nil || !got.AcknowledgedAt.Equal(t0) {
		t.Errorf("acknowledged alert = %+v", got)
	}
	if err := db.AcknowledgeAlert(ctx, 9999, "ops"); !errors.Is(err, models.ErrAlertNotFound) {
		t.Errorf("AcknowledgeAlert(missing) error = %v", err)
	}

	sev := models.SeverityCritical
	n, err := db.AcknowledgeAll(ctx, &sev, "lead")
	if err != nil {
		t.Fatalf("AcknowledgeAll(critical) error = %v", err)
	}
	if n != 1 {
		t.Errorf("AcknowledgeAll(critical) = %d, want 1 (one was already acknowledged)", n)
	}
	n, err = db.AcknowledgeAll(ctx, nil, "lead")
	if err != nil || n != 2 {
		t.Errorf("AcknowledgeAll(nil) = %d, %v; want 2", n, err)
	}
	n, _ = db.AcknowledgeAll(ctx, nil, "lead")
	if n != 0 {
		t.Errorf("AcknowledgeAll() on clean history = %d", n)
	}
	got, _ = db.GetAlert(ctx, ids[0])
	if got.AcknowledgedBy != "ops" {
		t.Errorf("AcknowledgeAll overwrote an earlier acknowledgement: %q", got.AcknowledgedBy)
	}
}

func TestHistory_Stats(t *testing.T) {
	db := setupTestDB(t)
	ids := seedHistory(t, db)
	ctx := context.Background()
	_ = db.AcknowledgeAlert(ctx, ids[1], "ops")

	stats, err := db.AlertStats(ctx, t0.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("AlertStats() error = %v", err)
	}
	if stats.Total != 3 || stats.Unacked != 2 {
		t.Errorf("Total/Unacked = %d/%d, want 3/2", stats.Total, stats.Unacked)
	}
	if stats.BySeverity[models.SeverityCritical] != 2 || stats.BySeverity[models.SeverityWarning] != 1 {
		t.Errorf("BySeverity = %v", stats.BySeverity)
	}
	if _, ok := stats.BySeverity[models.SeverityInfo]; ok {
		t.Error("stats include an alert older than the window")
	}
	if stats.Latest == nil || !stats.Latest.Equal(t0.Add(-time.Hour)) {
		t.Errorf("Latest = %v", stats.Latest)
	}

	empty, err := db.AlertStats(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("AlertStats(empty) error = %v", err)
	}
	if empty.Total != 0 || empty.Latest != nil {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestHistory_DeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	seedHistory(t, db)
	ctx := context.Background()

	n, err := db.DeleteOlderThan(ctx, t0.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteOlderThan() = %d, %v; want 1", n, err)
	}
	left, _ := db.QueryAlerts(ctx, models.AlertFilter{})
	if len(left) != 3 {
		t.Errorf("remaining = %d, want 3", len(left))
	}
}
