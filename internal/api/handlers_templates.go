// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// fromTemplateRequest names the new flow and overrides template
// parameters.
type fromTemplateRequest struct {
	Name   string         `json:"name" validate:"omitempty,max=200"`
	Params map[string]any `json:"params,omitempty"`
}

// ListTemplates handles GET /api/v1/templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	respondList(w, r, h.svc.ListTemplates())
}

// CreateFromTemplate handles POST /api/v1/templates/{id}/flows.
func (h *Handler) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "id")
	var req fromTemplateRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, true) {
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	f, err := h.svc.CreateFlowFromTemplate(r.Context(), templateID, req.Name, req.Params)
	h.auditLog(r, "flow.create_from_template", templateID, err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.broadcastReload()
	respondData(w, r, http.StatusCreated, f)
}
