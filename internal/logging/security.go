// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package logging

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// AuditEvent is an operator action on the administrative surface.
type AuditEvent struct {
	Action  string // flow.create, flow.delete, alert.ack, auth.login ...
	Actor   string
	Target  string
	Success bool
	IP      string
	Error   string
	Details map[string]string
}

// AuditLogger writes operator actions with secrets scrubbed.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger creates an audit logger on the global logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{logger: With().Str("component", "audit").Logger()}
}

// NewAuditLoggerWithLogger creates an audit logger on a specific logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditLoggerWithLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With().Str("component", "audit").Logger()}
}

// Log writes one audit event.
func (l *AuditLogger) Log(ev *AuditEvent) {
	e := l.logger.Info().Str("action", ev.Action)
	if ev.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if ev.Actor != "" {
		e = e.Str("actor", truncate(ev.Actor, 64))
	}
	if ev.Target != "" {
		e = e.Str("target", ev.Target)
	}
	if ev.IP != "" {
		e = e.Str("ip", ev.IP)
	}
	if ev.Error != "" && !ev.Success {
		e = e.Str("error", RedactSecrets(ev.Error))
	}
	for k, v := range ev.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}
	e.Msg("")
}

var (
	botTokenPattern = regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]{20,}`)
	bearerPattern   = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
)

var sensitiveKeys = []string{"password", "secret", "token", "api_key", "apikey", "authorization"}

// SanitizeValue masks values whose key names a credential.
func SanitizeValue(key, value string) string {
	lk := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lk, s) {
			return "[REDACTED]"
		}
	}
	return RedactSecrets(value)
}

// RedactSecrets removes Telegram bot tokens, bearer tokens and URL
// credentials or query strings from free text such as sink errors.
func RedactSecrets(s string) string {
	s = botTokenPattern.ReplaceAllString(s, "bot[REDACTED]")
	s = bearerPattern.ReplaceAllString(s, "Bearer [REDACTED]")
	return s
}

// RedactURL strips userinfo and the query string from a URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	u.User = nil
	u.RawQuery = ""
	return RedactSecrets(u.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
