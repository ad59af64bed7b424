// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/meshguard/internal/engine"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/logging"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/validation"
)

// sanitizeLogValue escapes control characters so request data cannot
// forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData wraps data in a success envelope.
func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: metadata(r),
	})
}

// respondList is respondData with a count.
func respondList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	md := metadata(r)
	md.Count = &n
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: items, Metadata: md})
}

func metadata(r *http.Request) models.Metadata {
	return models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", code).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	md := metadata(r)
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: md,
		Error:    &models.APIError{Code: code, Message: message},
	})
}

func respondAPIError(w http.ResponseWriter, r *http.Request, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: metadata(r),
		Error:    apiErr,
	})
}

// respondServiceError maps engine and store errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr *flows.ConfigurationError
		valErr *validation.RequestValidationError
	)
	switch {
	case errors.Is(err, models.ErrFlowNotFound):
		respondError(w, r, http.StatusNotFound, models.ErrCodeFlowNotFound, err.Error(), nil)
	case errors.Is(err, models.ErrAlertNotFound):
		respondError(w, r, http.StatusNotFound, models.ErrCodeAlertNotFound, err.Error(), nil)
	case errors.Is(err, flows.ErrTemplateNotFound):
		respondError(w, r, http.StatusNotFound, models.ErrCodeTemplateMissing, err.Error(), nil)
	case errors.As(err, &cfgErr):
		respondAPIError(w, r, http.StatusBadRequest, &models.APIError{
			Code:    models.ErrCodeInvalidFlow,
			Message: cfgErr.Error(),
			Details: map[string]interface{}{"problems": cfgErr.Problems},
		})
	case errors.As(err, &valErr):
		v := valErr.ToAPIError()
		respondAPIError(w, r, http.StatusBadRequest, &models.APIError{Code: v.Code, Message: v.Message, Details: v.Details})
	case errors.Is(err, engine.ErrNoEvent):
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
	default:
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal, "internal error", err)
	}
}

// decodeJSON reads a bounded JSON body into v. An empty body is allowed
// when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v interface{}, optional bool) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, http.StatusRequestEntityTooLarge, models.ErrCodeValidation, "request body too large", nil)
			return false
		}
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "failed to read request body", err)
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if optional {
			return true
		}
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "request body is required", nil)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// parseTimeParam accepts RFC 3339 or Unix seconds.
func parseTimeParam(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if sec, err := strconv.ParseFloat(value, 64); err == nil {
		t := time.Unix(0, int64(sec*float64(time.Second))).UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("%s must be RFC 3339 or Unix seconds", key)
}
