// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/models"
	"github.com/tomtom215/meshguard/internal/state"
)

var (
	errNoLocation   = errors.New("event has no location")
	errNoPilot      = errors.New("event has no pilot position")
	errUntracked    = errors.New("event has no object_id")
	errNoZoneSource = errors.New("no zone source configured")
)

// condition evaluates one non-logic condition. An error means the node
// could not be evaluated and counts as failed.
func (x *evaluation) condition(c flows.Condition) (bool, error) {
	switch c := c.(type) {
	case *flows.GeofenceCondition:
		return x.geofence(c)
	case *flows.TimeFilterCondition:
		return timeFilter(c, x.now), nil
	case *flows.ThresholdCondition:
		return threshold(c, x.event)
	case *flows.ObjectMatchCondition:
		return objectMatch(c, x.event), nil
	case *flows.StateCheckCondition:
		return x.stateCheck(c)
	case *flows.DurationCondition:
		return x.duration(c)
	case *flows.RateLimitCondition:
		return x.rateLimit(c), nil
	case *flows.LogicCondition:
		return false, errors.New("logic node evaluated as a gate")
	}
	return false, fmt.Errorf("unsupported condition %T", c)
}

func (x *evaluation) geofence(c *flows.GeofenceCondition) (bool, error) {
	p, err := x.position(c.Check)
	if err != nil {
		return false, err
	}

	var inside bool
	if c.Point != nil {
		in, d := geo.WithinRadius(p, *c.Point, c.RadiusKm)
		x.scratch["distance_km"] = geo.RoundTo2(d)
		inside = in
	} else {
		if x.zones == nil {
			return false, errNoZoneSource
		}
		z, ok := x.zones.Zone(c.ZoneID)
		if !ok {
			return false, fmt.Errorf("unknown zone %q", c.ZoneID)
		}
		m := z.Test(p)
		x.scratch["zone_name"] = z.DisplayName()
		if m.HasDistance {
			x.scratch["distance_km"] = geo.RoundTo2(m.DistanceKm)
		}
		inside = m.Inside
	}
	return inside == c.WantInside(), nil
}

// position returns the point a geofence tests: the event location, or the
// drone pilot position for pilot_inside.
func (x *evaluation) position(check flows.GeofenceCheck) (geo.Point, error) {
	if check == flows.CheckPilotInside {
		lat, ok1 := dataFloat(x.event, "pilot_lat")
		lon, ok2 := dataFloat(x.event, "pilot_lon")
		if !ok2 {
			lon, ok2 = dataFloat(x.event, "pilot_long")
		}
		if !ok1 || !ok2 || (lat == 0 && lon == 0) {
			return geo.Point{}, errNoPilot
		}
		return geo.Point{Lat: lat, Lon: lon}, nil
	}
	if x.event.Location.IsZero() {
		return geo.Point{}, errNoLocation
	}
	return geo.Point{Lat: x.event.Location.Lat, Lon: x.event.Location.Lon}, nil
}

// timeFilter checks the event time against allowed weekdays and an
// optional daily window. A window with start after end wraps midnight.
func timeFilter(c *flows.TimeFilterCondition, now time.Time) bool {
	local := now.In(c.Location)
	day := (int(local.Weekday()) + 6) % 7 // Monday = 0
	if !c.Days[day] {
		return c.Invert
	}
	if !c.HasWindow {
		return !c.Invert
	}
	minute := local.Hour()*60 + local.Minute()
	var in bool
	if c.StartMin <= c.EndMin {
		in = minute >= c.StartMin && minute <= c.EndMin
	} else {
		in = minute >= c.StartMin || minute <= c.EndMin
	}
	return in != c.Invert
}

func threshold(c *flows.ThresholdCondition, ev *models.Event) (bool, error) {
	if !c.HasValue {
		return true, nil
	}
	raw, ok := ev.Lookup(c.Field)
	if !ok {
		return false, fmt.Errorf("field %q missing", c.Field)
	}
	v, ok := models.ToFloat(raw)
	if !ok {
		return false, fmt.Errorf("field %q is not numeric", c.Field)
	}
	switch c.Op {
	case flows.OpGT:
		return v > c.Value, nil
	case flows.OpGTE:
		return v >= c.Value, nil
	case flows.OpLT:
		return v < c.Value, nil
	case flows.OpLTE:
		return v <= c.Value, nil
	case flows.OpEQ:
		return v == c.Value, nil
	case flows.OpNEQ:
		return v != c.Value, nil
	case flows.OpBetween:
		return v >= c.Value && v <= c.ValueMax, nil
	}
	return false, fmt.Errorf("unknown operator %q", c.Op)
}

// objectMatch compares a field as a string. A missing field compares as
// the empty string.
func objectMatch(c *flows.ObjectMatchCondition, ev *models.Event) bool {
	if !c.HasValue {
		return true
	}
	actual := ""
	if raw, ok := ev.Lookup(c.Field); ok {
		actual = models.ToString(raw)
	}
	switch c.Op {
	case flows.MatchEQ:
		return actual == c.Value
	case flows.MatchNEQ:
		return actual != c.Value
	case flows.MatchIn:
		return slices.Contains(c.Values, actual)
	case flows.MatchNotIn:
		return !slices.Contains(c.Values, actual)
	case flows.MatchContains:
		return strings.Contains(actual, c.Value)
	case flows.MatchStartsWith:
		return strings.HasPrefix(actual, c.Value)
	case flows.MatchRegex:
		return c.Pattern != nil && c.Pattern.MatchString(actual)
	}
	return false
}

func (x *evaluation) stateCheck(c *flows.StateCheckCondition) (bool, error) {
	if x.obs == nil {
		return false, errUntracked
	}
	cur := &x.obs.Cur
	switch c.Check {
	case flows.StateFirstSeen:
		return cur.DetectionCount == 1, nil
	case flows.StateReturning:
		return x.obs.Existed && cur.DetectionCount > 1 && cur.Gap() > c.Timeout, nil
	case flows.StateAlreadyTracked:
		return cur.DetectionCount > 1, nil
	case flows.StateInZone:
		return cur.InZone(c.ZoneID), nil
	case flows.StateNotInZone:
		return !cur.InZone(c.ZoneID), nil
	}
	return false, fmt.Errorf("unknown state check %q", c.Check)
}

// duration feeds the guarded check into the node's timer. A false check
// resets the timer.
func (x *evaluation) duration(c *flows.DurationCondition) (bool, error) {
	var met bool
	switch c.Check {
	case flows.DurationInZone:
		if x.obs == nil {
			return false, errUntracked
		}
		met = x.obs.Cur.InZone(c.ZoneID)
	case flows.DurationBelowSpeed, flows.DurationStationary:
		speed, ok := x.speed()
		met = ok && speed < c.SpeedThreshold
	default:
		return false, fmt.Errorf("unknown duration check %q", c.Check)
	}
	key := state.TimerKey{FlowID: x.flow.ID(), ObjectID: x.event.ObjectKey(), NodeID: c.NodeID()}
	ok, _ := x.tables.timers.Observe(key, met, c.MinDuration, x.now)
	return ok, nil
}

// rateLimit records a pass in the sliding window when there is room.
func (x *evaluation) rateLimit(c *flows.RateLimitCondition) bool {
	obj := models.GlobalObjectKey
	if c.PerObject {
		obj = x.event.ObjectKey()
	}
	key := state.RateKey{FlowID: x.flow.ID(), NodeID: c.NodeID(), ObjectID: obj}
	return x.tables.limiter.Allow(key, c.MaxEvents, c.Window, x.now)
}

func dataFloat(ev *models.Event, key string) (float64, bool) {
	v, ok := ev.DataValue(key)
	if !ok {
		return 0, false
	}
	return models.ToFloat(v)
}
