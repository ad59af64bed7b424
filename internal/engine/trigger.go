// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package engine

import (
	"errors"
	"strings"

	"github.com/tomtom215/meshguard/internal/eventbus"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/models"
)

var errNoReference = errors.New("no reference point or station position for max_distance_km")

// emergencySquawks are the transponder codes for hijack, radio failure and
// general emergency.
var emergencySquawks = []string{"7500", "7600", "7700"}

// matchTrigger reports whether the event matches the flow's trigger: the
// event type pattern first, then the category filters.
func (x *evaluation) matchTrigger() (bool, error) {
	t := &x.flow.Trigger
	ev := x.event
	if !eventbus.Match(t.Pattern, ev.EventType) {
		return false, nil
	}
	f := &t.Filters
	if f.ZoneID != "" && ev.DataString("zone_id") != f.ZoneID {
		return false, nil
	}

	switch t.Category {
	case "drone":
		return x.matchDrone(f), nil
	case "aircraft":
		return matchAircraft(f, ev), nil
	case "vessel":
		return matchVessel(f, ev), nil
	case "lightning":
		return x.matchLightning(f)
	case "weather":
		return matchWeather(f, ev), nil
	case "system":
		return f.MatchFeed == "" || ev.DataString("feed") == f.MatchFeed, nil
	}
	return true, nil
}

func (x *evaluation) matchDrone(f *flows.TriggerFilters) bool {
	ev := x.event
	if f.MatchMAC != "" && !strings.EqualFold(ev.ObjectID, f.MatchMAC) {
		return false
	}
	if f.MatchOUI != "" && !strings.HasPrefix(strings.ToUpper(ev.ObjectID), strings.ToUpper(f.MatchOUI)) {
		return false
	}
	if f.MatchNewOnly {
		isNew := models.ToBool(ev.Data["is_new"])
		if !isNew && x.obs != nil {
			isNew = x.obs.Cur.DetectionCount == 1
		}
		if !isNew {
			return false
		}
	}
	if f.MatchNotWhitelisted && models.ToBool(ev.Data["is_whitelisted"]) {
		return false
	}
	if f.MinRSSI != nil {
		rssi, ok := dataFloat(ev, "rssi")
		if !ok {
			rssi = -100
		}
		if rssi < *f.MinRSSI {
			return false
		}
	}
	return true
}

func matchAircraft(f *flows.TriggerFilters, ev *models.Event) bool {
	if f.MatchHex != "" && !strings.EqualFold(ev.ObjectID, f.MatchHex) {
		return false
	}
	if f.MatchCallsign != nil && !f.MatchCallsign.MatchString(ev.DataString("callsign")) {
		return false
	}
	squawk := ev.DataString("squawk")
	if f.MatchSquawk != "" && squawk != f.MatchSquawk {
		return false
	}
	if f.EmergencyOnly && !containsString(emergencySquawks, squawk) {
		return false
	}
	if f.MilitaryOnly {
		cat := ev.DataString("category")
		if !strings.Contains(strings.ToLower(cat), "military") && !containsString([]string{"A5", "A6", "A7"}, cat) {
			return false
		}
	}
	return true
}

func matchVessel(f *flows.TriggerFilters, ev *models.Event) bool {
	if f.MatchMMSI != "" && !strings.EqualFold(ev.ObjectID, f.MatchMMSI) {
		return false
	}
	if f.MatchName != nil && !f.MatchName.MatchString(ev.DataString("name")) {
		return false
	}
	if f.MatchType != "" && ev.DataString("vessel_type") != f.MatchType {
		return false
	}
	if f.MatchFlag != "" && ev.DataString("flag") != f.MatchFlag {
		return false
	}
	return true
}

// matchLightning applies max_distance_km from the trigger's reference
// point, or the station position when none is set.
func (x *evaluation) matchLightning(f *flows.TriggerFilters) (bool, error) {
	if f.MaxDistanceKm == nil {
		return true, nil
	}
	ref := f.ReferencePoint
	if ref == nil {
		ref = x.station
	}
	if ref == nil {
		return false, errNoReference
	}
	if x.event.Location.IsZero() {
		return false, errNoLocation
	}
	d := geo.HaversineKm(geo.Point{Lat: x.event.Location.Lat, Lon: x.event.Location.Lon}, *ref)
	x.scratch["distance_km"] = geo.RoundTo2(d)
	return d <= *f.MaxDistanceKm, nil
}

func matchWeather(f *flows.TriggerFilters, ev *models.Event) bool {
	if f.MinSeverity != "" {
		sev := strings.ToLower(ev.DataString("severity"))
		if sev == "" {
			sev = "yellow"
		}
		if flows.WeatherSeverityRank[sev] < flows.WeatherSeverityRank[f.MinSeverity] {
			return false
		}
	}
	if f.MatchType != "" && ev.DataString("warning_type") != f.MatchType {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
