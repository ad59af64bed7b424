// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
	loggerKey        contextKey = "logger"
	flowIDKey        contextKey = "flow_id"
	eventKey         contextKey = "event"
)

// eventFields identifies the event being evaluated.
type eventFields struct {
	eventType string
	objectID  string
}

// GenerateCorrelationID returns a short ID that ties one firing's log lines
// (evaluation, dispatch, history write) together.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a context carrying id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a context with a fresh correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a context carrying an HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithFlow returns a context tagged with the flow being evaluated.
func ContextWithFlow(ctx context.Context, flowID string) context.Context {
	return context.WithValue(ctx, flowIDKey, flowID)
}

// ContextWithEvent returns a context tagged with the event being
// evaluated. objectID may be empty for untracked events.
func ContextWithEvent(ctx context.Context, eventType, objectID string) context.Context {
	return context.WithValue(ctx, eventKey, eventFields{eventType: eventType, objectID: objectID})
}

// ContextWithLogger stores a logger in the context.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the stored logger or the global one.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger carrying whichever of correlation_id, request_id,
// flow_id, event_type and object_id ctx holds.
//
//	logging.Ctx(ctx).Warn().Str("action", "webhook").Msg("Action failed")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := LoggerFromContext(ctx).With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id, ok := ctx.Value(flowIDKey).(string); ok && id != "" {
		lc = lc.Str(FieldFlowID, id)
	}
	if ev, ok := ctx.Value(eventKey).(eventFields); ok {
		lc = lc.Str(FieldEventType, ev.eventType)
		if ev.objectID != "" {
			lc = lc.Str(FieldObjectID, ev.objectID)
		}
	}
	l := lc.Logger()
	return &l
}
