// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/validation"
)

// testFlowRequest is the dry-run body. Flow is only read by the unsaved
// flow endpoint.
type testFlowRequest struct {
	Flow  *models.FlowDefinition `json:"flow,omitempty"`
	Event *models.Event          `json:"event"`
}

// ListFlows handles GET /api/v1/flows.
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListFlows(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondList(w, r, list)
}

// GetFlow handles GET /api/v1/flows/{id}.
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.GetFlow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, f)
}

// CreateFlow handles POST /api/v1/flows. Omitted enabled and
// cooldown_seconds default to true and DefaultCooldownSeconds.
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	def := &models.FlowDefinition{Enabled: true, CooldownSeconds: models.DefaultCooldownSeconds}
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, def, false) {
		return
	}
	created, err := h.svc.CreateFlow(r.Context(), def)
	h.auditLog(r, "flow.create", def.Name, err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.broadcastReload()
	respondData(w, r, http.StatusCreated, created)
}

// UpdateFlow handles PUT and PATCH /api/v1/flows/{id}. Absent fields are
// left unchanged.
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var upd models.FlowUpdate
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &upd, false) {
		return
	}
	f, err := h.svc.UpdateFlow(r.Context(), id, &upd)
	h.auditLog(r, "flow.update", id, err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.broadcastReload()
	respondData(w, r, http.StatusOK, f)
}

// DeleteFlow handles DELETE /api/v1/flows/{id}.
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.svc.DeleteFlow(r.Context(), id)
	h.auditLog(r, "flow.delete", id, err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.broadcastReload()
	respondData(w, r, http.StatusOK, map[string]string{"deleted": id})
}

// EnableFlow handles POST /api/v1/flows/{id}/enable.
func (h *Handler) EnableFlow(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableFlow handles POST /api/v1/flows/{id}/disable.
func (h *Handler) DisableFlow(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")
	f, err := h.svc.SetFlowEnabled(r.Context(), id, enabled)
	action := "flow.disable"
	if enabled {
		action = "flow.enable"
	}
	h.auditLog(r, action, id, err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.broadcastReload()
	respondData(w, r, http.StatusOK, f)
}

// TestStoredFlow handles POST /api/v1/flows/{id}/test.
func (h *Handler) TestStoredFlow(w http.ResponseWriter, r *http.Request) {
	var req testFlowRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, false) {
		return
	}
	h.runTest(w, r, chi.URLParam(r, "id"), nil, req.Event)
}

// TestFlow handles POST /api/v1/flows/test with an unsaved flow.
func (h *Handler) TestFlow(w http.ResponseWriter, r *http.Request) {
	var req testFlowRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, false) {
		return
	}
	if req.Flow == nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "flow is required", nil)
		return
	}
	h.runTest(w, r, "", req.Flow, req.Event)
}

func (h *Handler) runTest(w http.ResponseWriter, r *http.Request, id string, def *models.FlowDefinition, ev *models.Event) {
	if ev == nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "event is required", nil)
		return
	}
	if verr := validation.ValidateStruct(ev); verr != nil {
		respondServiceError(w, r, verr)
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	}
	res, err := h.svc.TestFlow(r.Context(), id, def, ev)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, res)
}
