// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package flows

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/models"
)

//go:embed templates.json
var templatesJSON []byte

// TemplateParameter describes one user-facing knob of a template.
type TemplateParameter struct {
	Type        string `json:"type"`
	Default     any    `json:"default"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// TemplateFlow is the graph a template instantiates.
type TemplateFlow struct {
	CooldownSeconds int           `json:"cooldown_seconds"`
	Nodes           []models.Node `json:"nodes"`
	Edges           []models.Edge `json:"edges"`
}

// Template is a pre-built flow with named parameters.
type Template struct {
	ID          string                       `json:"id"`
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Category    string                       `json:"category"`
	Severity    models.Severity              `json:"severity"`
	Icon        string                       `json:"icon,omitempty"`
	SortOrder   int                          `json:"sort_order"`
	Parameters  map[string]TemplateParameter `json:"parameters"`
	Flow        TemplateFlow                 `json:"flow"`
}

var (
	templatesOnce sync.Once
	templateList  []Template
	templatesErr  error
)

func loadTemplates() ([]Template, error) {
	templatesOnce.Do(func() {
		var list []Template
		if err := json.Unmarshal(templatesJSON, &list); err != nil {
			templatesErr = fmt.Errorf("decode embedded templates: %w", err)
			return
		}
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].SortOrder != list[j].SortOrder {
				return list[i].SortOrder < list[j].SortOrder
			}
			return list[i].ID < list[j].ID
		})
		templateList = list
	})
	return templateList, templatesErr
}

// Templates returns every built-in template ordered by sort order.
// Callers receive copies and may modify them.
func Templates() []Template {
	list, err := loadTemplates()
	if err != nil {
		return nil
	}
	out := make([]Template, len(list))
	for i := range list {
		out[i] = list[i].clone()
	}
	return out
}

// GetTemplate returns a copy of one template.
func GetTemplate(id string) (Template, error) {
	list, err := loadTemplates()
	if err != nil {
		return Template{}, err
	}
	for i := range list {
		if list[i].ID == id {
			return list[i].clone(), nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

func (t Template) clone() Template {
	params := make(map[string]TemplateParameter, len(t.Parameters))
	for k, v := range t.Parameters {
		params[k] = v
	}
	t.Parameters = params
	def := &models.FlowDefinition{Nodes: t.Flow.Nodes, Edges: t.Flow.Edges}
	def = def.Clone()
	t.Flow.Nodes = def.Nodes
	t.Flow.Edges = def.Edges
	return t
}

// Instantiate builds a new, enabled flow definition from a template.
// Parameter overrides are applied to the nodes that understand them;
// unknown parameters are ignored. An empty name uses the template name.
// The returned definition has no ID; the store assigns one.
func Instantiate(templateID, name string, params map[string]any) (*models.FlowDefinition, error) {
	t, err := GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}

	for i := range t.Flow.Nodes {
		n := &t.Flow.Nodes[i]
		if n.Config == nil {
			n.Config = map[string]any{}
		}
		switch n.Type {
		case models.NodeTrigger:
			applyTriggerParams(n, params)
		case models.NodeCondition:
			applyConditionParams(n, params)
		}
	}

	if strings.TrimSpace(name) == "" {
		name = t.Name
	}
	cooldown := t.Flow.CooldownSeconds
	if v, ok := params["cooldown_seconds"]; ok {
		if n, ok := models.ToInt(v); ok {
			cooldown = n
		}
	}

	return &models.FlowDefinition{
		Name:            name,
		Description:     t.Description,
		Enabled:         true,
		Severity:        t.Severity,
		TemplateID:      t.ID,
		CooldownSeconds: cooldown,
		Nodes:           t.Flow.Nodes,
		Edges:           t.Flow.Edges,
	}, nil
}

func applyTriggerParams(n *models.Node, params map[string]any) {
	cfg := n.Config
	if v, ok := params["match_new_only"]; ok {
		cfg["match_new_only"] = models.ToBool(v)
	}
	if v, ok := params["zone_id"]; ok {
		_, has := cfg["zone_id"]
		event := str(cfg, "event")
		if has || event == "zone_entry" || event == "zone_exit" {
			cfg["zone_id"] = v
		}
	}
	if v, ok := params["max_distance_km"]; ok {
		cfg["max_distance_km"] = v
	} else if v, ok := params["distance_km"]; ok {
		cfg["max_distance_km"] = v
	}
	lat, okLat := params["reference_lat"]
	lon, okLon := params["reference_lon"]
	if okLat && okLon && lat != nil && lon != nil {
		cfg["reference_point"] = map[string]any{"lat": lat, "lon": lon}
	}
}

func applyConditionParams(n *models.Node, params map[string]any) {
	cfg := n.Config
	switch n.Subtype {
	case SubtypeGeofence:
		if v, ok := params["zone_id"]; ok {
			cfg["zone_id"] = v
		}
	case SubtypeThreshold:
		if v, ok := params["altitude_threshold_ft"]; ok && str(cfg, "field") == "data.altitude_ft" {
			cfg["value"] = v
		}
		if v, ok := params["speed_threshold_kts"]; ok && str(cfg, "unit") == "kts" {
			cfg["value"] = v
		}
	case SubtypeDuration:
		if v, ok := params["duration_minutes"]; ok {
			if m, ok := models.ToFloat(v); ok {
				cfg["min_duration_seconds"] = m * 60
			}
		}
		if v, ok := params["speed_threshold_kts"]; ok {
			cfg["speed_threshold"] = v
		}
	case SubtypeRateLimit:
		if v, ok := params["rate_limit_fires"]; ok {
			delete(cfg, "max_events")
			cfg["max_fires"] = v
		}
		if v, ok := params["rate_limit_window"]; ok {
			delete(cfg, "window_seconds")
			cfg["window_minutes"] = v
		}
	}
}
