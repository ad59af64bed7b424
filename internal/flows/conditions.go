// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package flows

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // time_filter defaults to Europe/London

	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/models"
)

// Condition subtypes.
const (
	SubtypeGeofence    = "geofence"
	SubtypeTimeFilter  = "time_filter"
	SubtypeThreshold   = "threshold"
	SubtypeObjectMatch = "object_match"
	SubtypeStateCheck  = "state_check"
	SubtypeDuration    = "duration"
	SubtypeRateLimit   = "rate_limit"
	SubtypeLogic       = "logic"
)

// ConditionSubtypes lists every condition subtype Compile accepts.
var ConditionSubtypes = []string{
	SubtypeGeofence, SubtypeTimeFilter, SubtypeThreshold, SubtypeObjectMatch,
	SubtypeStateCheck, SubtypeDuration, SubtypeRateLimit, SubtypeLogic,
}

// Condition is a compiled condition node. The set of implementations is
// closed: only this package can add one, and the engine switches over all
// of them.
type Condition interface {
	NodeID() string
	Subtype() string
	sealed()
}

type condBase struct{ id string }

func (c condBase) NodeID() string { return c.id }
func (condBase) sealed()          {}

// GeofenceCheck selects which position a geofence tests.
type GeofenceCheck string

const (
	CheckObjectInside  GeofenceCheck = "object_inside"
	CheckPilotInside   GeofenceCheck = "pilot_inside"
	CheckObjectOutside GeofenceCheck = "object_outside"
)

// GeofenceCondition tests the object (or drone pilot) position against an
// inline circle or a named zone.
type GeofenceCondition struct {
	condBase
	Check    GeofenceCheck
	ZoneID   string
	Point    *geo.Point
	RadiusKm float64
}

func (*GeofenceCondition) Subtype() string { return SubtypeGeofence }

// WantInside reports whether the check passes on membership.
func (c *GeofenceCondition) WantInside() bool { return c.Check != CheckObjectOutside }

// TimeFilterCondition passes inside a daily window on allowed weekdays.
type TimeFilterCondition struct {
	condBase
	Location  *time.Location
	Days      [7]bool // index 0 = Monday
	HasWindow bool
	StartMin  int
	EndMin    int
	Invert    bool
}

func (*TimeFilterCondition) Subtype() string { return SubtypeTimeFilter }

// ThresholdOp is a numeric comparison.
type ThresholdOp string

const (
	OpGT      ThresholdOp = "gt"
	OpGTE     ThresholdOp = "gte"
	OpLT      ThresholdOp = "lt"
	OpLTE     ThresholdOp = "lte"
	OpEQ      ThresholdOp = "eq"
	OpNEQ     ThresholdOp = "neq"
	OpBetween ThresholdOp = "between"
)

var thresholdOps = map[string]ThresholdOp{
	"gt": OpGT, ">": OpGT,
	"gte": OpGTE, ">=": OpGTE,
	"lt": OpLT, "<": OpLT,
	"lte": OpLTE, "<=": OpLTE,
	"eq": OpEQ, "==": OpEQ, "=": OpEQ,
	"neq": OpNEQ, "!=": OpNEQ,
	"between": OpBetween,
}

// ThresholdCondition compares a numeric field.
type ThresholdCondition struct {
	condBase
	Field    string
	Op       ThresholdOp
	Value    float64
	ValueMax float64
	HasValue bool // false = no value configured, always passes
}

func (*ThresholdCondition) Subtype() string { return SubtypeThreshold }

// MatchOp is a string comparison.
type MatchOp string

const (
	MatchEQ         MatchOp = "eq"
	MatchNEQ        MatchOp = "neq"
	MatchIn         MatchOp = "in"
	MatchNotIn      MatchOp = "not_in"
	MatchContains   MatchOp = "contains"
	MatchStartsWith MatchOp = "starts_with"
	MatchRegex      MatchOp = "regex"
)

// ObjectMatchCondition compares any dotted field as a string.
type ObjectMatchCondition struct {
	condBase
	Field    string
	Op       MatchOp
	Value    string
	Values   []string
	Pattern  *regexp.Regexp
	HasValue bool
}

func (*ObjectMatchCondition) Subtype() string { return SubtypeObjectMatch }

// StateCheck names an ObjectState predicate.
type StateCheck string

const (
	StateFirstSeen      StateCheck = "first_seen"
	StateReturning      StateCheck = "returning"
	StateAlreadyTracked StateCheck = "already_tracked"
	StateInZone         StateCheck = "in_zone"
	StateNotInZone      StateCheck = "not_in_zone"
)

// StateCheckCondition tests the object's lifecycle state.
type StateCheckCondition struct {
	condBase
	Check   StateCheck
	Timeout time.Duration
	ZoneID  string
}

func (*StateCheckCondition) Subtype() string { return SubtypeStateCheck }

// DurationCheck names the guarded sub-condition of a duration node.
type DurationCheck string

const (
	DurationInZone     DurationCheck = "in_zone"
	DurationBelowSpeed DurationCheck = "below_speed"
	DurationStationary DurationCheck = "stationary"
)

// DurationCondition passes once its guarded check has held continuously
// for MinDuration.
type DurationCondition struct {
	condBase
	Check          DurationCheck
	MinDuration    time.Duration
	ZoneID         string
	SpeedThreshold float64
}

func (*DurationCondition) Subtype() string { return SubtypeDuration }

// RateLimitCondition passes at most MaxEvents times per Window.
type RateLimitCondition struct {
	condBase
	MaxEvents int
	Window    time.Duration
	PerObject bool
}

func (*RateLimitCondition) Subtype() string { return SubtypeRateLimit }

// LogicOp combines the results of a logic node's inputs.
type LogicOp string

const (
	LogicAND LogicOp = "AND"
	LogicOR  LogicOp = "OR"
	LogicNOT LogicOp = "NOT"
)

// LogicCondition is a boolean combinator over incoming edges.
type LogicCondition struct {
	condBase
	Op LogicOp
}

func (*LogicCondition) Subtype() string { return SubtypeLogic }

// compileCondition builds the typed condition for a node, recording any
// config problems.
func compileCondition(n *models.Node, p *problems) Condition {
	cfg := n.Config
	b := condBase{id: n.ID}

	switch n.Subtype {
	case SubtypeGeofence:
		c := &GeofenceCondition{condBase: b, Check: CheckObjectInside, ZoneID: str(cfg, "zone_id")}
		switch check := str(cfg, "check"); check {
		case "":
			if v, ok := cfg["inside"].(bool); ok && !v {
				c.Check = CheckObjectOutside
			}
		case string(CheckObjectInside), string(CheckPilotInside), string(CheckObjectOutside):
			c.Check = GeofenceCheck(check)
		default:
			p.add(n.ID, "unknown geofence check %q", check)
		}
		if raw, ok := cfg["point"]; ok && raw != nil {
			pt, err := parsePoint(raw)
			if err != nil {
				p.add(n.ID, "geofence point: %v", err)
			}
			c.Point = pt
		}
		c.RadiusKm, _ = num(cfg, "radius_km")
		if c.Point != nil && c.RadiusKm <= 0 {
			p.add(n.ID, "geofence point requires a positive radius_km")
		}
		if c.Point == nil && c.ZoneID == "" {
			p.add(n.ID, "geofence requires zone_id or point with radius_km")
		}
		return c

	case SubtypeTimeFilter:
		c := &TimeFilterCondition{condBase: b, Invert: models.ToBool(cfg["invert"])}
		tz := str(cfg, "timezone")
		if tz == "" {
			tz = "Europe/London"
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			p.add(n.ID, "unknown timezone %q", tz)
			loc = time.UTC
		}
		c.Location = loc
		if raw, ok := cfg["days_of_week"]; ok && raw != nil {
			for _, d := range models.ToIntSlice(raw) {
				if d < 0 || d > 6 {
					p.add(n.ID, "days_of_week entry %d out of range 0-6", d)
					continue
				}
				c.Days[d] = true
			}
		} else {
			for i := range c.Days {
				c.Days[i] = true
			}
		}
		start := firstStr(cfg, "time_start", "start_time")
		end := firstStr(cfg, "time_end", "end_time")
		switch {
		case start != "" && end != "":
			s, err1 := parseClock(start)
			e, err2 := parseClock(end)
			if err1 != nil || err2 != nil {
				p.add(n.ID, "time window must be HH:MM, got %q-%q", start, end)
			}
			c.HasWindow, c.StartMin, c.EndMin = true, s, e
		case start != "" || end != "":
			p.add(n.ID, "time window needs both time_start and time_end")
		}
		return c

	case SubtypeThreshold:
		c := &ThresholdCondition{condBase: b, Field: str(cfg, "field")}
		opName := strings.ToLower(str(cfg, "operator"))
		if opName == "" {
			opName = "gt"
		}
		op, ok := thresholdOps[opName]
		if !ok {
			p.add(n.ID, "unknown threshold operator %q", opName)
		}
		c.Op = op
		if c.Field == "" {
			p.add(n.ID, "threshold requires field")
		}
		if raw, ok := cfg["value"]; ok && raw != nil {
			v, ok := models.ToFloat(raw)
			if !ok {
				p.add(n.ID, "threshold value %v is not numeric", raw)
			}
			c.Value, c.HasValue = v, true
		}
		if op == OpBetween && c.HasValue {
			v, ok := num(cfg, "value_max")
			if !ok {
				p.add(n.ID, "between requires numeric value_max")
			}
			c.ValueMax = v
		}
		return c

	case SubtypeObjectMatch:
		c := &ObjectMatchCondition{condBase: b, Field: str(cfg, "field"), Op: MatchOp(strings.ToLower(str(cfg, "operator")))}
		if c.Field == "" {
			c.Field = "object_id"
		}
		if c.Op == "" {
			c.Op = MatchEQ
		}
		raw, hasValue := cfg["value"]
		c.HasValue = hasValue && raw != nil
		switch c.Op {
		case MatchEQ, MatchNEQ, MatchContains, MatchStartsWith:
			c.Value = models.ToString(raw)
		case MatchIn, MatchNotIn:
			c.Values = models.ToStringSlice(raw)
		case MatchRegex:
			c.Value = models.ToString(raw)
			if c.HasValue {
				re, err := regexp.Compile(c.Value)
				if err != nil {
					p.add(n.ID, "invalid regex %q: %v", c.Value, err)
				}
				c.Pattern = re
			}
		default:
			p.add(n.ID, "unknown object_match operator %q", c.Op)
		}
		return c

	case SubtypeStateCheck:
		c := &StateCheckCondition{condBase: b, Check: StateCheck(str(cfg, "check")), ZoneID: str(cfg, "zone_id"), Timeout: time.Hour}
		if c.Check == "" {
			c.Check = StateFirstSeen
		}
		if v, ok := num(cfg, "timeout_seconds"); ok {
			c.Timeout = seconds(v)
		}
		switch c.Check {
		case StateFirstSeen, StateReturning, StateAlreadyTracked:
		case StateInZone, StateNotInZone:
			if c.ZoneID == "" {
				p.add(n.ID, "state_check %s requires zone_id", c.Check)
			}
		default:
			p.add(n.ID, "unknown state_check %q", c.Check)
		}
		return c

	case SubtypeDuration:
		c := &DurationCondition{condBase: b, Check: DurationCheck(str(cfg, "check")), ZoneID: str(cfg, "zone_id")}
		if c.Check == "" {
			c.Check = DurationInZone
		}
		if v, ok := num(cfg, "min_duration_seconds"); ok {
			if v < 0 {
				p.add(n.ID, "min_duration_seconds must be >= 0")
			}
			c.MinDuration = seconds(v)
		}
		switch c.Check {
		case DurationInZone:
			if c.ZoneID == "" {
				p.add(n.ID, "duration in_zone requires zone_id")
			}
		case DurationBelowSpeed:
			c.SpeedThreshold = 1.0
		case DurationStationary:
			c.SpeedThreshold = 0.5
		default:
			p.add(n.ID, "unknown duration check %q", c.Check)
		}
		if v, ok := num(cfg, "speed_threshold"); ok {
			c.SpeedThreshold = v
		}
		return c

	case SubtypeRateLimit:
		c := &RateLimitCondition{condBase: b, MaxEvents: 1, Window: 5 * time.Minute, PerObject: true}
		if v, ok := num(cfg, "max_events"); ok {
			c.MaxEvents = int(v)
		} else if v, ok := num(cfg, "max_fires"); ok {
			c.MaxEvents = int(v)
		}
		if v, ok := num(cfg, "window_seconds"); ok {
			c.Window = seconds(v)
		} else if v, ok := num(cfg, "window_minutes"); ok {
			c.Window = seconds(v * 60)
		}
		if raw, ok := cfg["per_object"]; ok && raw != nil {
			c.PerObject = models.ToBool(raw)
		}
		if c.MaxEvents < 1 {
			p.add(n.ID, "rate_limit max_events must be >= 1")
		}
		if c.Window <= 0 {
			p.add(n.ID, "rate_limit window must be positive")
		}
		return c

	case SubtypeLogic:
		op := LogicOp(strings.ToUpper(firstStr(cfg, "operator", "op")))
		if op == "" {
			op = LogicAND
		}
		switch op {
		case LogicAND, LogicOR, LogicNOT:
		default:
			p.add(n.ID, "unknown logic operator %q", op)
		}
		return &LogicCondition{condBase: b, Op: op}
	}

	p.add(n.ID, "unknown condition subtype %q", n.Subtype)
	return nil
}

func str(cfg map[string]any, key string) string {
	v, ok := cfg[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(models.ToString(v))
}

func firstStr(cfg map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(cfg, k); s != "" {
			return s
		}
	}
	return ""
}

func num(cfg map[string]any, key string) (float64, bool) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return 0, false
	}
	return models.ToFloat(v)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func parsePoint(raw any) (*geo.Point, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected {lat, lon}, got %T", raw)
	}
	lat, ok1 := models.ToFloat(m["lat"])
	lon, ok2 := models.ToFloat(m["lon"])
	if !ok2 {
		lon, ok2 = models.ToFloat(m["lng"])
	}
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("lat and lon must be numeric")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates %v,%v out of range", lat, lon)
	}
	return &geo.Point{Lat: lat, Lon: lon}, nil
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("missing colon")
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("bad hour %q", h)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("bad minute %q", m)
	}
	return hh*60 + mm, nil
}
