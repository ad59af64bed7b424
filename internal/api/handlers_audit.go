// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/meshguard/internal/audit"
	"github.com/tomtom215/meshguard/internal/models"
)

func parseAuditFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	f := audit.QueryFilter{
		Action: q.Get("action"),
		Actor:  q.Get("actor"),
	}
	if v := q.Get("outcome"); v != "" {
		switch o := audit.Outcome(v); o {
		case audit.OutcomeSuccess, audit.OutcomeFailure:
			f.Outcome = o
		default:
			return f, fmt.Errorf("outcome must be success or failure")
		}
	}

	var err error
	if f.Since, err = parseTimeParam(r, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTimeParam(r, "until"); err != nil {
		return f, err
	}
	if f.Limit, err = getIntParam(r, "limit", audit.DefaultQueryLimit); err != nil {
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

// QueryAudit handles GET /api/v1/audit.
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	if h.trail == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "audit trail unavailable", nil)
		return
	}
	filter, err := parseAuditFilter(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	events, err := h.trail.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal, "failed to query audit trail", err)
		return
	}
	respondList(w, r, events)
}
