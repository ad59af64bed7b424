// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: true, Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("flow_id", "flow_abc").Msg("flow fired")

	out := buf.String()
	if !strings.Contains(out, "flow fired") {
		t.Errorf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, `"flow_id":"flow_abc"`) {
		t.Errorf("expected flow_id field, got: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCtx_AddsCorrelationID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithCorrelationID(ctx, "abcd1234")
	ctx = ContextWithRequestID(ctx, "req-1")

	Ctx(ctx).Info().Msg("dispatch")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"abcd1234"`) {
		t.Errorf("missing correlation_id: %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id: %s", out)
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
	if a == b {
		t.Error("expected distinct IDs")
	}
	if CorrelationIDFromContext(context.Background()) != "" {
		t.Error("expected empty ID from bare context")
	}
}

func TestForFlow(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	ForFlow("flow_airfield").Warn().Msg("Skipping invalid flow")

	if out := buf.String(); !strings.Contains(out, `"flow_id":"flow_airfield"`) {
		t.Errorf("missing flow_id: %s", out)
	}
}

func TestCtx_AddsFlowAndEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		objectID string
		want     []string
		absent   string
	}{
		{
			name:     "tracked",
			objectID: "AA:BB:CC:DD:EE:FF",
			want:     []string{`"flow_id":"flow_airfield"`, `"event_type":"drone.detected"`, `"object_id":"AA:BB:CC:DD:EE:FF"`},
		},
		{
			name:   "untracked",
			want:   []string{`"flow_id":"flow_airfield"`, `"event_type":"drone.detected"`},
			absent: "object_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
			ctx = ContextWithEvent(ctx, "drone.detected", tt.objectID)
			ctx = ContextWithFlow(ctx, "flow_airfield")

			Ctx(ctx).Info().Msg("Firing suppressed by cooldown")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("missing %s: %s", w, out)
				}
			}
			if tt.absent != "" && strings.Contains(out, tt.absent) {
				t.Errorf("unexpected %s: %s", tt.absent, out)
			}
		})
	}
}
