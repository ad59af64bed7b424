// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package models

import (
	"math"
	"strings"
	"time"
)

// Location is a WGS84 position. Alt is in the unit reported by the sensor.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// IsZero reports whether the location is the 0,0 null island placeholder
// that sensors emit when they have no fix.
func (l *Location) IsZero() bool {
	return l == nil || (l.Lat == 0 && l.Lon == 0)
}

// Event is the normalized envelope consumed by the alert engine.
type Event struct {
	EventType  string         `json:"event_type" validate:"required"`
	Source     string         `json:"source"`
	Timestamp  float64        `json:"timestamp"`
	ObjectID   string         `json:"object_id,omitempty"`
	ObjectType string         `json:"object_type" validate:"required"`
	Location   *Location      `json:"location,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Time returns the event timestamp as a UTC time.Time.
func (e *Event) Time() time.Time {
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// Category returns the first segment of the dot-hierarchical event type.
func (e *Event) Category() string {
	if i := strings.IndexByte(e.EventType, '.'); i >= 0 {
		return e.EventType[:i]
	}
	return e.EventType
}

// Tracked reports whether per-object state applies to this event.
func (e *Event) Tracked() bool {
	return e.ObjectID != ""
}

// ObjectKey returns the object ID or "_global" for untracked events.
func (e *Event) ObjectKey() string {
	if e.ObjectID == "" {
		return GlobalObjectKey
	}
	return e.ObjectID
}

// GlobalObjectKey keys cooldown and rate-limit state for untracked events.
const GlobalObjectKey = "_global"

// DataValue returns a top-level data value.
func (e *Event) DataValue(key string) (any, bool) {
	if e.Data == nil {
		return nil, false
	}
	v, ok := e.Data[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// DataString returns a data value coerced to a string, or "" when absent.
func (e *Event) DataString(key string) string {
	v, ok := e.DataValue(key)
	if !ok {
		return ""
	}
	return ToString(v)
}

// Lookup resolves a dotted path against the envelope. Envelope fields are
// addressed by name (event_type, object_id, location.lat, ...), data fields
// by "data.<path>". Paths that name neither fall back to the data map so
// "rssi" and "data.rssi" are equivalent.
func (e *Event) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	switch parts[0] {
	case "event_type":
		return e.EventType, len(parts) == 1
	case "source":
		return e.Source, len(parts) == 1
	case "object_id":
		return e.ObjectID, len(parts) == 1
	case "object_type":
		return e.ObjectType, len(parts) == 1
	case "timestamp":
		return e.Timestamp, len(parts) == 1
	case "location":
		if e.Location == nil || len(parts) != 2 {
			return nil, false
		}
		switch parts[1] {
		case "lat":
			return e.Location.Lat, true
		case "lon":
			return e.Location.Lon, true
		case "alt":
			return e.Location.Alt, true
		}
		return nil, false
	case "data":
		return walk(e.Data, parts[1:])
	}
	if v, ok := walk(e.Data, parts); ok {
		return v, true
	}
	if len(parts) > 1 {
		return walk(e.Data, parts[1:])
	}
	return nil, false
}

func walk(m map[string]any, parts []string) (any, bool) {
	if len(parts) == 0 || m == nil {
		return nil, false
	}
	var cur any = m
	for _, p := range parts {
		next, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = next[p]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of the event so adapters never share live maps
// with the evaluation path.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.Location != nil {
		loc := *e.Location
		c.Location = &loc
	}
	c.Data = cloneMap(e.Data)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = cloneValue(t[i])
		}
		return s
	default:
		return v
	}
}

// CloneMap deep-copies a JSON-shaped map.
func CloneMap(m map[string]any) map[string]any {
	return cloneMap(m)
}
