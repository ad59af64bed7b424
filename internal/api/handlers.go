// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/meshguard/internal/audit"
	"github.com/tomtom215/meshguard/internal/auth"
	"github.com/tomtom215/meshguard/internal/engine"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/middleware"
	"github.com/tomtom215/meshguard/internal/models"
	ws "github.com/tomtom215/meshguard/internal/websocket"
)

// AdminService is the engine's administrative surface.
type AdminService interface {
	ListFlows(ctx context.Context) ([]*models.FlowDefinition, error)
	GetFlow(ctx context.Context, id string) (*models.FlowDefinition, error)
	CreateFlow(ctx context.Context, def *models.FlowDefinition) (*models.FlowDefinition, error)
	UpdateFlow(ctx context.Context, id string, upd *models.FlowUpdate) (*models.FlowDefinition, error)
	DeleteFlow(ctx context.Context, id string) error
	SetFlowEnabled(ctx context.Context, id string, enabled bool) (*models.FlowDefinition, error)
	ReloadFlows(ctx context.Context) error
	TestFlow(ctx context.Context, id string, def *models.FlowDefinition, ev *models.Event) (*engine.TestResult, error)
	QueryHistory(ctx context.Context, filter models.AlertFilter) ([]*models.AlertRecord, error)
	AcknowledgeAlert(ctx context.Context, id int64, by string) error
	AcknowledgeAll(ctx context.Context, severity *models.Severity, by string) (int64, error)
	AlertStats(ctx context.Context) (*models.AlertStats, error)
	ListTemplates() []flows.Template
	CreateFlowFromTemplate(ctx context.Context, templateID, name string, params map[string]any) (*models.FlowDefinition, error)
	EngineStats() engine.Stats
}

// Broadcaster pushes admin changes to connected consoles.
type Broadcaster interface {
	BroadcastAlertAcknowledged(data ws.AlertAcknowledgedData)
	BroadcastFlowsReloaded(data ws.FlowsReloadedData)
}

// PolicyReloader re-reads the authorization policy.
type PolicyReloader interface {
	Reload() error
}

// AuditTrail records operator actions and serves them back.
type AuditTrail interface {
	Log(event *audit.Event)
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handler serves the admin API.
//
// Handler methods are split across files by resource:
//   - handlers_flows.go: flow CRUD, enable/disable, dry run
//   - handlers_history.go: alert history, acknowledgement, stats
//   - handlers_templates.go: template catalogue
//   - handlers_engine.go: engine stats and reload
//   - handlers_health.go: liveness and readiness
//   - handlers_websocket.go: console websocket upgrade
//   - handlers_audit.go: operator action trail
type Handler struct {
	svc         AdminService
	cfg         Config
	broadcaster Broadcaster
	wsHub       *ws.Hub
	policy      PolicyReloader
	checks      map[string]ReadinessCheck
	audit       *logging.AuditLogger
	trail       AuditTrail
	startTime   time.Time
}

// NewHandler creates the admin handler. Optional collaborators are set
// with the Set methods before the router is built.
func NewHandler(svc AdminService, cfg Config) *Handler {
	return &Handler{
		svc:       svc,
		cfg:       cfg,
		checks:    make(map[string]ReadinessCheck),
		audit:     logging.NewAuditLogger(),
		startTime: time.Now(),
	}
}

// SetHub enables the console websocket and change broadcasts.
func (h *Handler) SetHub(hub *ws.Hub) {
	h.wsHub = hub
	if hub != nil {
		h.broadcaster = hub
	}
}

// SetBroadcaster overrides where change notifications go.
func (h *Handler) SetBroadcaster(b Broadcaster) {
	h.broadcaster = b
}

// SetPolicyReloader lets engine reload also refresh the authz policy.
func (h *Handler) SetPolicyReloader(p PolicyReloader) {
	h.policy = p
}

// SetAuditTrail persists operator actions in addition to logging them.
func (h *Handler) SetAuditTrail(trail AuditTrail) {
	h.trail = trail
}

// AddReadinessCheck registers a dependency probed by /health/ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// actor names the caller for acknowledgements and audit records.
func actor(r *http.Request) string {
	if c := auth.ClaimsFromContext(r.Context()); c != nil {
		return c.Username
	}
	return "unknown"
}

func (h *Handler) auditLog(r *http.Request, action, target string, err error) {
	ev := &logging.AuditEvent{
		Action:  action,
		Actor:   actor(r),
		Target:  target,
		Success: err == nil,
		IP:      r.RemoteAddr,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	h.audit.Log(ev)

	if h.trail == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	if err != nil {
		outcome = audit.OutcomeFailure
	}
	h.trail.Log(&audit.Event{
		Action:    action,
		Actor:     ev.Actor,
		Target:    target,
		Outcome:   outcome,
		SourceIP:  r.RemoteAddr,
		RequestID: middleware.GetRequestID(r),
		Error:     ev.Error,
	})
}

// broadcastReload tells consoles the registry changed.
func (h *Handler) broadcastReload() {
	if h.broadcaster == nil {
		return
	}
	st := h.svc.EngineStats()
	h.broadcaster.BroadcastFlowsReloaded(ws.FlowsReloadedData{
		Enabled:  st.EnabledFlows,
		Disabled: st.TotalFlows - st.EnabledFlows,
		Rejected: len(st.RegistryErrors),
	})
}
