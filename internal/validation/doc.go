// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package validation wraps go-playground/validator v10 with a shared
// instance, meshguard's custom tags and VALIDATION_ERROR translation.
//
// Struct validation reports fields by their JSON names so API clients see
// the keys they sent:
//
//	type historyQuery struct {
//	    Severity string `json:"severity" validate:"omitempty,severity"`
//	    Limit    int    `json:"limit" validate:"gte=0,lte=1000"`
//	}
//
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
//
// Single values such as path parameters go through ValidateVar:
//
//	if verr := validation.ValidateVar("id", id, "required,flow_id"); verr != nil { ... }
//
// The incoming event decoder and the flow definition models use the same
// instance, so every entry point reports failures the same way.
package validation
