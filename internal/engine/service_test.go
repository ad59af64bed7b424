// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/meshguard/internal/dispatch"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/models"
)

// mockHistory implements HistoryStore and HistorySink for testing
type mockHistory struct {
	mu      sync.Mutex
	records []*models.AlertRecord
	filter  models.AlertFilter
	ackBy   string
	failRec error
}

func (m *mockHistory) Record(_ context.Context, rec *models.AlertRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRec != nil {
		return 0, m.failRec
	}
	m.records = append(m.records, rec)
	return int64(len(m.records)), nil
}

func (m *mockHistory) QueryAlerts(_ context.Context, filter models.AlertFilter) ([]*models.AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	return m.records, nil
}

func (m *mockHistory) AcknowledgeAlert(_ context.Context, id int64, by string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.records) {
		return ErrAlertNotFound
	}
	m.records[id-1].Acknowledged = true
	m.ackBy = by
	return nil
}

func (m *mockHistory) AcknowledgeAll(_ context.Context, _ *models.Severity, by string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackBy = by
	return int64(len(m.records)), nil
}

func (m *mockHistory) AlertStats(context.Context, time.Time) (*models.AlertStats, error) {
	return &models.AlertStats{Total: len(m.records)}, nil
}

// mockCooldownStore implements CooldownStore and FireCounter for testing
type mockCooldownStore struct {
	mu    sync.Mutex
	saved []models.CooldownRecord
	fires map[string]int
}

func (m *mockCooldownStore) SaveCooldown(_ context.Context, rec models.CooldownRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, rec)
	return nil
}

func (m *mockCooldownStore) RecordFire(_ context.Context, flowID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fires == nil {
		m.fires = make(map[string]int)
	}
	m.fires[flowID]++
	return nil
}

func newTestService(t *testing.T, defs ...*models.FlowDefinition) (*Service, *Engine, *mockHistory) {
	t.Helper()
	e, _, store := newTestEngine(t, airfieldZones(t), defs...)
	hist := &mockHistory{}
	svc := NewService(e, e.registry, store, hist)
	return svc, e, hist
}

func TestService_CreateFlow(t *testing.T) {
	t.Parallel()

	svc, e, _ := newTestService(t)
	ctx := context.Background()

	def := airfieldFlow()
	def.ID = ""
	created, err := svc.CreateFlow(ctx, def)
	if err != nil {
		t.Fatalf("CreateFlow() error = %v", err)
	}
	if !strings.HasPrefix(created.ID, "flow_") || len(created.ID) != len("flow_")+12 {
		t.Errorf("ID = %q", created.ID)
	}
	if created.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if st := e.Stats(); st.TotalFlows != 1 || st.EnabledFlows != 1 {
		t.Errorf("registry not reloaded: %+v", st)
	}

	got, err := svc.GetFlow(ctx, created.ID)
	if err != nil || got.Name != def.Name {
		t.Errorf("GetFlow() = %v, %v", got, err)
	}
}

func TestService_CreateFlowRejectsInvalid(t *testing.T) {
	t.Parallel()

	svc, e, _ := newTestService(t)
	def := airfieldFlow()
	def.Edges = []models.Edge{edge("t1", "c1")} // a1 unreachable

	_, err := svc.CreateFlow(context.Background(), def)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("CreateFlow() error = %v, want ConfigurationError", err)
	}
	if e.Stats().TotalFlows != 0 {
		t.Error("invalid flow was persisted")
	}

	def = airfieldFlow()
	def.Name = ""
	if _, err := svc.CreateFlow(context.Background(), def); !errors.As(err, &cerr) {
		t.Errorf("missing name: error = %v", err)
	}
}

func TestService_UpdateEnableDelete(t *testing.T) {
	t.Parallel()

	svc, e, _ := newTestService(t, airfieldFlow())
	ctx := context.Background()

	if _, err := svc.SetFlowEnabled(ctx, "flow_airfield", false); err != nil {
		t.Fatalf("SetFlowEnabled() error = %v", err)
	}
	if st := e.Stats(); st.EnabledFlows != 0 || st.TotalFlows != 1 {
		t.Errorf("after disable: %+v", st)
	}

	name := "Renamed"
	updated, err := svc.UpdateFlow(ctx, "flow_airfield", &models.FlowUpdate{Name: &name})
	if err != nil || updated.Name != "Renamed" || updated.Enabled {
		t.Errorf("UpdateFlow() = %+v, %v", updated, err)
	}

	bad := -5
	if _, err := svc.UpdateFlow(ctx, "flow_airfield", &models.FlowUpdate{CooldownSeconds: &bad}); err == nil {
		t.Error("negative cooldown accepted")
	}

	if _, err := svc.UpdateFlow(ctx, "flow_missing", &models.FlowUpdate{Name: &name}); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("UpdateFlow(missing) error = %v", err)
	}

	if err := svc.DeleteFlow(ctx, "flow_airfield"); err != nil {
		t.Fatalf("DeleteFlow() error = %v", err)
	}
	if err := svc.DeleteFlow(ctx, "flow_airfield"); !errors.Is(err, ErrFlowNotFound) {
		t.Errorf("second DeleteFlow() error = %v", err)
	}
	if e.Stats().TotalFlows != 0 {
		t.Error("registry still holds deleted flow")
	}
}

func TestService_DeleteForgetsCooldown(t *testing.T) {
	t.Parallel()

	svc, e, _ := newTestService(t, airfieldFlow())
	ctx := context.Background()
	_ = e.HandleEvent(ctx, droneEvent("D1", t0, 55.870, -4.431, nil))
	if e.Stats().Cooldowns != 1 {
		t.Fatalf("cooldowns = %d, want 1", e.Stats().Cooldowns)
	}
	if err := svc.DeleteFlow(ctx, "flow_airfield"); err != nil {
		t.Fatal(err)
	}
	if e.Stats().Cooldowns != 0 {
		t.Error("cooldown survived flow deletion")
	}
}

func TestService_Templates(t *testing.T) {
	t.Parallel()

	svc, e, _ := newTestService(t)
	if len(svc.ListTemplates()) == 0 {
		t.Fatal("no templates")
	}
	def, err := svc.CreateFlowFromTemplate(context.Background(), "tpl_drone_detected", "", map[string]any{"cooldown_seconds": 60})
	if err != nil {
		t.Fatalf("CreateFlowFromTemplate() error = %v", err)
	}
	if def.TemplateID != "tpl_drone_detected" || def.CooldownSeconds != 60 || def.ID == "" {
		t.Errorf("def = %+v", def)
	}
	if e.Stats().EnabledFlows != 1 {
		t.Error("template flow not loaded")
	}

	if _, err := svc.CreateFlowFromTemplate(context.Background(), "tpl_nope", "", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("unknown template error = %v", err)
	}
}

func TestService_History(t *testing.T) {
	t.Parallel()

	svc, _, hist := newTestService(t)
	ctx := context.Background()
	_, _ = hist.Record(ctx, &models.AlertRecord{FlowID: "f"})

	if _, err := svc.QueryHistory(ctx, models.AlertFilter{Limit: 5000, Offset: -3}); err != nil {
		t.Fatal(err)
	}
	if hist.filter.Limit != models.MaxHistoryLimit || hist.filter.Offset != 0 {
		t.Errorf("filter not normalized: %+v", hist.filter)
	}

	if err := svc.AcknowledgeAlert(ctx, 1, "ops"); err != nil || hist.ackBy != "ops" {
		t.Errorf("AcknowledgeAlert() = %v", err)
	}
	if err := svc.AcknowledgeAlert(ctx, 99, "ops"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("AcknowledgeAlert(99) = %v", err)
	}

	bogus := models.Severity("loud")
	if _, err := svc.AcknowledgeAll(ctx, &bogus, "ops"); err == nil {
		t.Error("invalid severity accepted")
	}
	if n, err := svc.AcknowledgeAll(ctx, nil, "ops"); err != nil || n != 1 {
		t.Errorf("AcknowledgeAll() = %d, %v", n, err)
	}
}

func TestHistoryRecorder_Complete(t *testing.T) {
	t.Parallel()

	hist := &mockHistory{}
	cds := &mockCooldownStore{}
	rec := NewHistoryRecorder(hist, cds, cds)

	job := &dispatch.Job{
		ID: "job-1",
		Record: &models.AlertRecord{
			FlowID:          "flow_a",
			Severity:        models.SeverityWarning,
			ActionsExecuted: []models.ActionResult{{Action: "ui_alert", OK: true}, {Action: "webhook", Error: "boom"}},
		},
		Cooldown: models.CooldownRecord{FlowID: "flow_a", ObjectID: "D1", FireCount: 1},
	}
	rec.Complete(context.Background(), job)

	if job.Record.ID != 1 || len(hist.records) != 1 {
		t.Errorf("record id = %d, stored = %d", job.Record.ID, len(hist.records))
	}
	if len(cds.saved) != 1 || cds.saved[0].ObjectID != "D1" {
		t.Errorf("cooldowns saved = %+v", cds.saved)
	}
	if cds.fires["flow_a"] != 1 {
		t.Errorf("fires = %v", cds.fires)
	}
}

func TestHistoryRecorder_SinkFailureStillPersistsCooldown(t *testing.T) {
	t.Parallel()

	hist := &mockHistory{failRec: errors.New("disk full")}
	cds := &mockCooldownStore{}
	NewHistoryRecorder(hist, cds, nil).Complete(context.Background(), &dispatch.Job{
		Record:   &models.AlertRecord{FlowID: "flow_a"},
		Cooldown: models.CooldownRecord{FlowID: "flow_a", ObjectID: "_global"},
	})
	if len(cds.saved) != 1 {
		t.Error("cooldown not saved after history failure")
	}
}

func TestDryRun_IsolatedFromLiveState(t *testing.T) {
	t.Parallel()

	def := flowDef("flow_rate", 0, []models.Node{
		node("t1", models.NodeTrigger, "drone.detected", nil),
		node("c1", models.NodeCondition, flows.SubtypeRateLimit, map[string]any{"max_events": 1, "window_seconds": 60}),
		node("a1", models.NodeAction, flows.ActionUIAlert, map[string]any{"message": "hello {{object_id}}"}),
		node("a2", models.NodeAction, flows.ActionDBLog, nil),
	}, edge("t1", "c1"), edge("c1", "a1"), edge("t1", "a2"))
	e, sub, _ := newTestEngine(t, nil, def)
	ctx := context.Background()
	ev := droneEvent("D1", t0, 1, 1, nil)

	for i := 0; i < 3; i++ {
		res, err := e.DryRun(ctx, def, ev)
		if err != nil {
			t.Fatalf("DryRun() error = %v", err)
		}
		if !res.TriggerMatched || !res.WouldFire || len(res.Actions) != 2 {
			t.Fatalf("run %d: result = %+v", i, res)
		}
		if res.Message != "hello D1" {
			t.Errorf("Message = %q", res.Message)
		}
		if res.Actions[0].Config["message"] != "hello D1" {
			t.Errorf("resolved config = %v", res.Actions[0].Config)
		}
	}
	if sub.count() != 0 || e.Stats().TrackedObjects != 0 {
		t.Fatal("dry run touched live state")
	}

	_ = e.HandleEvent(ctx, ev)
	if sub.count() != 1 {
		t.Fatalf("live fire count = %d, want 1", sub.count())
	}
	if j := sub.last(); len(j.Requests) != 2 {
		t.Errorf("live requests = %d, want 2 (rate limit untouched by dry runs)", len(j.Requests))
	}
}

func TestDryRun_NodeResultsAndCooldown(t *testing.T) {
	t.Parallel()

	def := airfieldFlow()
	e, _, _ := newTestEngine(t, airfieldZones(t), def)
	ctx := context.Background()

	res, err := e.DryRun(ctx, def, droneEvent("D9", t0, 56.5, -4.431, nil))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"t1": "pass", "c1": "fail", "a1": "fail"}
	for _, n := range res.Nodes {
		if n.Result != want[n.NodeID] {
			t.Errorf("node %s = %s, want %s", n.NodeID, n.Result, want[n.NodeID])
		}
	}
	if res.WouldFire {
		t.Error("outside zone should not fire")
	}

	in := droneEvent("D9", t0+5, 55.870, -4.431, nil)
	_ = e.HandleEvent(ctx, in)
	in.Timestamp = t0 + 65
	in.Data = map[string]any{"is_new": true}
	res, err = e.DryRun(ctx, def, in)
	if err != nil {
		t.Fatal(err)
	}
	if res.WouldFire || res.CooldownRemaining != 240 {
		t.Errorf("WouldFire = %v, remaining = %v, want false and 240", res.WouldFire, res.CooldownRemaining)
	}
	if len(res.Actions) != 1 || res.Title != "Drone at Airfield" {
		t.Errorf("actions = %+v, title = %q", res.Actions, res.Title)
	}
}

func TestDryRun_InvalidFlow(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t, nil)
	def := airfieldFlow()
	def.Nodes = def.Nodes[:2]
	_, err := e.DryRun(context.Background(), def, droneEvent("D", t0, 1, 1, nil))
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("DryRun() error = %v, want ConfigurationError", err)
	}
	if _, err := e.DryRun(context.Background(), airfieldFlow(), nil); !errors.Is(err, ErrNoEvent) {
		t.Errorf("nil event error = %v", err)
	}
}
