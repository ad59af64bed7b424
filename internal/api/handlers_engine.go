// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/meshguard/internal/authz"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/validation"
)

// EngineStats handles GET /api/v1/engine/stats.
func (h *Handler) EngineStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.svc.EngineStats())
}

// ReloadEngine handles POST /api/v1/engine/reload. It rebuilds the flow
// registry from the store and re-reads a file-backed authz policy.
func (h *Handler) ReloadEngine(w http.ResponseWriter, r *http.Request) {
	err := h.svc.ReloadFlows(r.Context())
	h.auditLog(r, "engine.reload", "flows", err)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	policyReloaded := false
	if h.policy != nil {
		switch perr := h.policy.Reload(); {
		case perr == nil:
			policyReloaded = true
		case errors.Is(perr, authz.ErrNoPolicyFile):
		default:
			logging.Ctx(r.Context()).Warn().Err(perr).Msg("Authorization policy reload failed")
		}
	}

	h.broadcastReload()
	st := h.svc.EngineStats()
	respondData(w, r, http.StatusOK, map[string]interface{}{
		"total_flows":     st.TotalFlows,
		"enabled_flows":   st.EnabledFlows,
		"registry_errors": st.RegistryErrors,
		"policy_reloaded": policyReloaded,
	})
}

// validateRequest runs struct validation and returns the API error body,
// or nil.
func validateRequest(v interface{}) *models.APIError {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	apiErr := verr.ToAPIError()
	return &models.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details}
}
