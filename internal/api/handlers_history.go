// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/meshguard/internal/models"
	ws "github.com/tomtom215/meshguard/internal/websocket"
)

// ackAllRequest optionally limits AcknowledgeAll to one severity.
type ackAllRequest struct {
	Severity *models.Severity `json:"severity,omitempty"`
}

// parseAlertFilter reads history filters from the query string.
func parseAlertFilter(r *http.Request) (models.AlertFilter, error) {
	q := r.URL.Query()
	var f models.AlertFilter

	if v := q.Get("severity"); v != "" {
		sev := models.Severity(v)
		if !sev.Valid() {
			return f, fmt.Errorf("unknown severity %q", v)
		}
		f.Severity = &sev
	}
	for key, dst := range map[string]**string{
		"object_type": &f.ObjectType,
		"object_id":   &f.ObjectID,
		"flow_id":     &f.FlowID,
	} {
		if v := q.Get(key); v != "" {
			s := v
			*dst = &s
		}
	}
	if v := q.Get("acknowledged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("acknowledged must be a boolean")
		}
		f.Acknowledged = &b
	}

	var err error
	if f.Since, err = parseTimeParam(r, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTimeParam(r, "until"); err != nil {
		return f, err
	}
	if f.Limit, err = getIntParam(r, "limit", models.DefaultHistoryLimit); err != nil {
		return f, err
	}
	if f.Offset, err = getIntParam(r, "offset", 0); err != nil {
		return f, err
	}
	if f.Offset < 0 {
		return f, fmt.Errorf("offset must not be negative")
	}
	return f, nil
}

// QueryHistory handles GET /api/v1/history.
func (h *Handler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	alerts, err := h.svc.QueryHistory(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondList(w, r, alerts)
}

// AlertStats handles GET /api/v1/history/stats.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.AlertStats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, stats)
}

// AcknowledgeAlert handles POST /api/v1/history/{id}/ack.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "alert id must be a positive integer", nil)
		return
	}
	by := actor(r)
	err = h.svc.AcknowledgeAlert(r.Context(), id, by)
	h.auditLog(r, "alert.ack", raw, err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.broadcaster != nil {
		h.broadcaster.BroadcastAlertAcknowledged(ws.AlertAcknowledgedData{AlertID: id, AcknowledgedBy: by})
	}
	respondData(w, r, http.StatusOK, map[string]interface{}{"id": id, "acknowledged_by": by})
}

// AcknowledgeAll handles POST /api/v1/history/ack-all.
func (h *Handler) AcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	var req ackAllRequest
	if !decodeJSON(w, r, h.cfg.MaxBodyBytes, &req, true) {
		return
	}
	if req.Severity != nil && !req.Severity.Valid() {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, fmt.Sprintf("unknown severity %q", *req.Severity), nil)
		return
	}
	by := actor(r)
	n, err := h.svc.AcknowledgeAll(r.Context(), req.Severity, by)
	target := "all"
	if req.Severity != nil {
		target = string(*req.Severity)
	}
	h.auditLog(r, "alert.ack_all", target, err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if h.broadcaster != nil && n > 0 {
		h.broadcaster.BroadcastAlertAcknowledged(ws.AlertAcknowledgedData{Count: n, AcknowledgedBy: by})
	}
	respondData(w, r, http.StatusOK, map[string]interface{}{"acknowledged": n, "acknowledged_by": by})
}
