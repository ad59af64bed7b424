// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
)

// testDBSemaphore serializes DuckDB tests; parallel cgo databases
// contend heavily for memory.
var testDBSemaphore = make(chan struct{}, 1)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(Config{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	db.now = func() time.Time { return t0 }
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleFlow(id string) *models.FlowDefinition {
	return &models.FlowDefinition{
		ID:              id,
		Name:            "Airfield drones",
		Description:     "Drones near the airfield",
		Enabled:         true,
		Severity:        models.SeverityCritical,
		CooldownSeconds: 300,
		Nodes: []models.Node{
			{ID: "t1", Type: models.NodeTrigger, Subtype: "drone.*", Config: map[string]any{"match_new_only": true}},
			{ID: "a1", Type: models.NodeAction, Subtype: "ui_alert", Config: map[string]any{"title": "Drone"}},
		},
		Edges:     []models.Edge{{From: "t1", To: "a1"}},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func TestNew_AppliesSchemaOnce(t *testing.T) {
	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "nested", "meshguard.duckdb")
	db, err := New(Config{Path: path, Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := db.CreateFlow(ctx, sampleFlow("flow_persist")); err != nil {
		t.Fatalf("CreateFlow() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = New(Config{Path: path, Threads: 1})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if want := migrations()[len(migrations())-1].Version; v != want {
		t.Errorf("SchemaVersion() = %d, want %d", v, want)
	}
	if _, err := db.GetFlow(ctx, "flow_persist"); err != nil {
		t.Errorf("flow lost across reopen: %v", err)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty path succeeded")
	}
}

func TestFlows_CRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.CreateFlow(ctx, sampleFlow("flow_a")); err != nil {
		t.Fatalf("CreateFlow() error = %v", err)
	}
	later := sampleFlow("flow_b")
	later.CreatedAt = t0.Add(time.Minute)
	if err := db.CreateFlow(ctx, later); err != nil {
		t.Fatalf("CreateFlow() error = %v", err)
	}
	if err := db.CreateFlow(ctx, sampleFlow("flow_a")); err == nil {
		t.Error("CreateFlow() accepted a duplicate id")
	}

	got, err := db.GetFlow(ctx, "flow_a")
	if err != nil {
		t.Fatalf("GetFlow() error = %v", err)
	}
	if got.Name != "Airfield drones" || got.Severity != models.SeverityCritical || !got.Enabled {
		t.Errorf("GetFlow() = %+v", got)
	}
	if len(got.Nodes) != 2 || got.Nodes[0].Subtype != "drone.*" || got.Nodes[0].Config["match_new_only"] != true {
		t.Errorf("nodes = %+v", got.Nodes)
	}
	if len(got.Edges) != 1 || got.Edges[0].To != "a1" {
		t.Errorf("edges = %+v", got.Edges)
	}
	if !got.CreatedAt.Equal(t0) || got.LastFiredAt != nil {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.LastFiredAt)
	}

	list, err := db.ListFlows(ctx)
	if err != nil {
		t.Fatalf("ListFlows() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "flow_a" || list[1].ID != "flow_b" {
		t.Errorf("ListFlows() order = %v", list)
	}

	got.Name = "Renamed"
	got.Enabled = false
	got.UpdatedAt = t0.Add(time.Hour)
	if err := db.UpdateFlow(ctx, got); err != nil {
		t.Fatalf("UpdateFlow() error = %v", err)
	}
	got, _ = db.GetFlow(ctx, "flow_a")
	if got.Name != "Renamed" || got.Enabled || !got.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("after update = %+v", got)
	}

	if err := db.UpdateFlow(ctx, sampleFlow("flow_missing")); !errors.Is(err, models.ErrFlowNotFound) {
		t.Errorf("UpdateFlow(missing) error = %v, want ErrFlowNotFound", err)
	}
	if _, err := db.GetFlow(ctx, "flow_missing"); !errors.Is(err, models.ErrFlowNotFound) {
		t.Errorf("GetFlow(missing) error = %v, want ErrFlowNotFound", err)
	}
}

func TestFlows_RecordFire(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_ = db.CreateFlow(ctx, sampleFlow("flow_a"))

	fired := t0.Add(5 * time.Minute)
	for i := 0; i < 3; i++ {
		if err := db.RecordFire(ctx, "flow_a", fired); err != nil {
			t.Fatalf("RecordFire() error = %v", err)
		}
	}
	if err := db.RecordFire(ctx, "flow_gone", fired); err != nil {
		t.Errorf("RecordFire(missing) error = %v, want nil", err)
	}

	got, _ := db.GetFlow(ctx, "flow_a")
	if got.FireCount != 3 || got.LastFiredAt == nil || !got.LastFiredAt.Equal(fired) {
		t.Errorf("fire stats = %d / %v", got.FireCount, got.LastFiredAt)
	}
}

func TestFlows_DeleteRemovesCooldowns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_ = db.CreateFlow(ctx, sampleFlow("flow_a"))
	_ = db.SaveCooldown(ctx, models.CooldownRecord{FlowID: "flow_a", ObjectID: "drone:1", LastFiredAt: t0, FireCount: 1})
	_ = db.SaveCooldown(ctx, models.CooldownRecord{FlowID: "flow_b", ObjectID: "drone:1", LastFiredAt: t0, FireCount: 1})

	if err := db.DeleteFlow(ctx, "flow_a"); err != nil {
		t.Fatalf("DeleteFlow() error = %v", err)
	}
	if err := db.DeleteFlow(ctx, "flow_a"); !errors.Is(err, models.ErrFlowNotFound) {
		t.Errorf("second DeleteFlow() error = %v, want ErrFlowNotFound", err)
	}

	cds, err := db.LoadCooldowns(ctx, t0.Add(-time.Hour))
	if err != nil {
		t.Fatalf("LoadCooldowns() error = %v", err)
	}
	if len(cds) != 1 || cds[0].FlowID != "flow_b" {
		t.Errorf("cooldowns after delete = %+v", cds)
	}
}

func TestCooldowns_UpsertAndLoad(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_ = db.SaveCooldown(ctx, models.CooldownRecord{FlowID: "f", ObjectID: "o", LastFiredAt: t0, FireCount: 1})
	_ = db.SaveCooldown(ctx, models.CooldownRecord{FlowID: "f", ObjectID: "o", LastFiredAt: t0.Add(time.Minute), FireCount: 2})
	_ = db.SaveCooldown(ctx, models.CooldownRecord{FlowID: "f", ObjectID: "old", LastFiredAt: t0.Add(-48 * time.Hour), FireCount: 9})

	got, err := db.LoadCooldowns(ctx, t0.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("LoadCooldowns() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("LoadCooldowns() = %+v, want one entry", got)
	}
	if got[0].FireCount != 2 || !got[0].LastFiredAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("upserted cooldown = %+v", got[0])
	}

	n, err := db.PruneCooldowns(ctx, t0.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Errorf("PruneCooldowns() = %d, %v; want 1", n, err)
	}
}
