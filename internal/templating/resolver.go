// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package templating resolves {{identifier}} placeholders in action payloads.
//
// Resolution is a single left-to-right pass over the template. A token is
// substituted only when it is a well-formed identifier present in the
// context; anything else, including unknown names, is copied verbatim so
// flow authors can spot typos in the delivered alert.
package templating

import (
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Context is the flat substitution vocabulary for one firing.
type Context map[string]string

// Resolve substitutes every known {{identifier}} in tmpl.
func Resolve(tmpl string, ctx Context) string {
	if tmpl == "" || !strings.Contains(tmpl, openDelim) {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		j := strings.Index(tmpl[i:], openDelim)
		if j < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		j += i
		b.WriteString(tmpl[i:j])

		nameStart := j + len(openDelim)
		k := strings.Index(tmpl[nameStart:], closeDelim)
		if k < 0 {
			b.WriteString(tmpl[j:])
			break
		}
		k += nameStart

		name := tmpl[nameStart:k]
		if isIdentifier(name) {
			if v, ok := ctx[name]; ok {
				b.WriteString(v)
				i = k + len(closeDelim)
				continue
			}
		}
		// Unknown or malformed: emit the opening delimiter and rescan after
		// it so a later well-formed token in the span is still found.
		b.WriteString(openDelim)
		i = nameStart
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

// ResolveConfig returns a deep copy of config with every string value,
// including those nested in maps and slices, resolved against ctx.
func ResolveConfig(config map[string]any, ctx Context) map[string]any {
	if config == nil {
		return nil
	}
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = resolveValue(v, ctx)
	}
	return out
}

func resolveValue(v any, ctx Context) any {
	switch t := v.(type) {
	case string:
		return Resolve(t, ctx)
	case map[string]any:
		return ResolveConfig(t, ctx)
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = resolveValue(t[i], ctx)
		}
		return s
	default:
		return v
	}
}
