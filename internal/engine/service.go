// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/validation"
)

// FlowStore persists flow definitions. Get, Update and Delete return
// ErrFlowNotFound for unknown IDs.
type FlowStore interface {
	flows.FlowSource
	GetFlow(ctx context.Context, id string) (*models.FlowDefinition, error)
	CreateFlow(ctx context.Context, def *models.FlowDefinition) error
	UpdateFlow(ctx context.Context, def *models.FlowDefinition) error
	DeleteFlow(ctx context.Context, id string) error
}

// HistoryStore queries and acknowledges alert history. AcknowledgeAlert
// returns ErrAlertNotFound for unknown IDs.
type HistoryStore interface {
	QueryAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.AlertRecord, error)
	AcknowledgeAlert(ctx context.Context, id int64, by string) error
	AcknowledgeAll(ctx context.Context, severity *models.Severity, by string) (int64, error)
	AlertStats(ctx context.Context, since time.Time) (*models.AlertStats, error)
}

// Service is the administrative surface. Every mutation validates the
// flow before persisting and reloads the registry afterwards.
type Service struct {
	engine   *Engine
	registry *flows.Registry
	store    FlowStore
	history  HistoryStore
	now      func() time.Time
}

// NewService wires the admin operations. registry must read from store.
func NewService(engine *Engine, registry *flows.Registry, store FlowStore, history HistoryStore) *Service {
	return &Service{
		engine:   engine,
		registry: registry,
		store:    store,
		history:  history,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewFlowID returns a fresh "flow_" identifier.
func NewFlowID() string {
	return "flow_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ListFlows returns every stored flow, including invalid ones.
func (s *Service) ListFlows(ctx context.Context) ([]*models.FlowDefinition, error) {
	return s.store.ListFlows(ctx)
}

// GetFlow returns one stored flow.
func (s *Service) GetFlow(ctx context.Context, id string) (*models.FlowDefinition, error) {
	return s.store.GetFlow(ctx, id)
}

// CreateFlow validates, assigns an ID and persists def.
func (s *Service) CreateFlow(ctx context.Context, def *models.FlowDefinition) (*models.FlowDefinition, error) {
	def = def.Clone()
	if def.ID == "" {
		def.ID = NewFlowID()
	}
	now := s.now()
	def.CreatedAt, def.UpdatedAt = now, now
	def.LastFiredAt, def.FireCount = nil, 0
	if err := validateFlow(def); err != nil {
		return nil, err
	}
	if err := s.store.CreateFlow(ctx, def); err != nil {
		return nil, fmt.Errorf("create flow: %w", err)
	}
	s.reload(ctx, "create", def.ID)
	return def, nil
}

// UpdateFlow applies a partial update.
func (s *Service) UpdateFlow(ctx context.Context, id string, upd *models.FlowUpdate) (*models.FlowDefinition, error) {
	if verr := validation.ValidateStruct(upd); verr != nil {
		return nil, verr
	}
	cur, err := s.store.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	def := upd.Apply(cur)
	def.UpdatedAt = s.now()
	if err := validateFlow(def); err != nil {
		return nil, err
	}
	if err := s.store.UpdateFlow(ctx, def); err != nil {
		return nil, fmt.Errorf("update flow: %w", err)
	}
	s.reload(ctx, "update", id)
	return def, nil
}

// DeleteFlow removes a flow and forgets its evaluation state.
func (s *Service) DeleteFlow(ctx context.Context, id string) error {
	if err := s.store.DeleteFlow(ctx, id); err != nil {
		return err
	}
	s.engine.ForgetFlow(id)
	s.reload(ctx, "delete", id)
	return nil
}

// SetFlowEnabled toggles a flow.
func (s *Service) SetFlowEnabled(ctx context.Context, id string, enabled bool) (*models.FlowDefinition, error) {
	return s.UpdateFlow(ctx, id, &models.FlowUpdate{Enabled: &enabled})
}

// ReloadFlows rebuilds the registry from the store.
func (s *Service) ReloadFlows(ctx context.Context) error {
	return s.registry.Reload(ctx)
}

// TestFlow dry-runs a stored flow, or def when given, against ev.
func (s *Service) TestFlow(ctx context.Context, id string, def *models.FlowDefinition, ev *models.Event) (*TestResult, error) {
	if def == nil {
		stored, err := s.store.GetFlow(ctx, id)
		if err != nil {
			return nil, err
		}
		def = stored
	}
	return s.engine.DryRun(ctx, def, ev)
}

// QueryHistory returns alert records matching filter, newest first.
func (s *Service) QueryHistory(ctx context.Context, filter models.AlertFilter) ([]*models.AlertRecord, error) {
	filter.Limit = filter.NormalizedLimit()
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.history.QueryAlerts(ctx, filter)
}

// AcknowledgeAlert marks one alert acknowledged.
func (s *Service) AcknowledgeAlert(ctx context.Context, id int64, by string) error {
	return s.history.AcknowledgeAlert(ctx, id, by)
}

// AcknowledgeAll acknowledges every open alert, optionally of one severity.
func (s *Service) AcknowledgeAll(ctx context.Context, severity *models.Severity, by string) (int64, error) {
	if severity != nil && !severity.Valid() {
		return 0, fmt.Errorf("invalid severity %q", *severity)
	}
	return s.history.AcknowledgeAll(ctx, severity, by)
}

// AlertStats summarizes the last 24 hours.
func (s *Service) AlertStats(ctx context.Context) (*models.AlertStats, error) {
	return s.history.AlertStats(ctx, s.now().Add(-24*time.Hour))
}

// ListTemplates returns the template catalogue.
func (s *Service) ListTemplates() []flows.Template {
	return flows.Templates()
}

// CreateFlowFromTemplate instantiates and saves a template.
func (s *Service) CreateFlowFromTemplate(ctx context.Context, templateID, name string, params map[string]any) (*models.FlowDefinition, error) {
	def, err := flows.Instantiate(templateID, name, params)
	if err != nil {
		return nil, err
	}
	return s.CreateFlow(ctx, def)
}

// EngineStats returns engine counters.
func (s *Service) EngineStats() Stats {
	return s.engine.Stats()
}

// reload refreshes the registry after a mutation. The write already
// succeeded, so a failed reload is logged, not returned.
func (s *Service) reload(ctx context.Context, op, flowID string) {
	if err := s.registry.Reload(ctx); err != nil {
		logging.ForFlow(flowID).Error().Err(err).Str("op", op).Msg("Registry reload after flow change failed")
	}
}

// validateFlow runs struct validation then the graph compiler.
func validateFlow(def *models.FlowDefinition) error {
	if verr := validation.ValidateStruct(def); verr != nil {
		return &ConfigurationError{
			FlowID:   def.ID,
			FlowName: def.Name,
			Problems: []flows.Problem{{Message: verr.Error()}},
		}
	}
	_, err := flows.Compile(def)
	return err
}
