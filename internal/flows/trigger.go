// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package flows

import (
	"regexp"
	"strings"

	"github.com/tomtom215/meshguard/internal/geo"
	"github.com/tomtom215/meshguard/internal/models"
)

// Trigger is a compiled trigger node.
type Trigger struct {
	NodeID   string
	Subtype  string
	Category string
	// Pattern is the event type pattern in event bus syntax:
	// "drone.detected" or "drone.*".
	Pattern string
	Filters TriggerFilters
}

// TriggerFilters are the optional per-category match criteria.
type TriggerFilters struct {
	// drone
	MatchMAC            string
	MatchOUI            string
	MatchNewOnly        bool
	MatchNotWhitelisted bool
	MinRSSI             *float64

	// aircraft
	MatchHex      string
	MatchCallsign *regexp.Regexp
	MatchSquawk   string
	EmergencyOnly bool
	MilitaryOnly  bool

	// vessel
	MatchMMSI string
	MatchName *regexp.Regexp
	MatchFlag string

	// vessel (data.vessel_type) or weather (data.warning_type)
	MatchType string

	// lightning
	MaxDistanceKm  *float64
	ReferencePoint *geo.Point

	// weather
	MinSeverity string

	// system
	MatchFeed string

	// zone_entry / zone_exit triggers
	ZoneID string
}

var (
	categoryPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	eventPattern    = regexp.MustCompile(`^(\*|[a-z][a-z0-9_]*)$`)
)

// WeatherSeverityRank orders weather warning levels.
var WeatherSeverityRank = map[string]int{"yellow": 1, "amber": 2, "red": 3}

// compileTrigger maps a trigger subtype such as "drone.detected" to its
// event pattern. A config "event" overrides the event part; an empty event
// matches the whole category.
func compileTrigger(n *models.Node, p *problems) Trigger {
	t := Trigger{NodeID: n.ID, Subtype: n.Subtype}
	category, event, _ := strings.Cut(n.Subtype, ".")
	if override := str(n.Config, "event"); override != "" {
		event = override
	}
	if !categoryPattern.MatchString(category) {
		p.add(n.ID, "invalid trigger subtype %q", n.Subtype)
	}
	if event != "" && !eventPattern.MatchString(event) {
		p.add(n.ID, "invalid trigger event %q", event)
	}
	t.Category = category
	if event == "" || event == "*" {
		t.Pattern = category + ".*"
	} else {
		t.Pattern = category + "." + event
	}

	cfg := n.Config
	f := &t.Filters
	f.MatchMAC = str(cfg, "match_mac")
	f.MatchOUI = str(cfg, "match_oui")
	f.MatchNewOnly = models.ToBool(cfg["match_new_only"])
	f.MatchNotWhitelisted = models.ToBool(cfg["match_not_whitelisted"])
	if v, ok := num(cfg, "min_rssi"); ok {
		f.MinRSSI = &v
	}
	f.MatchHex = str(cfg, "match_hex")
	f.MatchCallsign = wildcard(n.ID, "match_callsign", str(cfg, "match_callsign"), p)
	f.MatchSquawk = str(cfg, "match_squawk")
	f.EmergencyOnly = models.ToBool(cfg["emergency_only"])
	f.MilitaryOnly = models.ToBool(cfg["military_only"])
	f.MatchMMSI = str(cfg, "match_mmsi")
	f.MatchName = wildcard(n.ID, "match_name", str(cfg, "match_name"), p)
	f.MatchFlag = str(cfg, "match_flag")
	f.MatchType = str(cfg, "match_type")
	if v, ok := num(cfg, "max_distance_km"); ok {
		if v <= 0 {
			p.add(n.ID, "max_distance_km must be positive")
		}
		f.MaxDistanceKm = &v
	}
	if raw, ok := cfg["reference_point"]; ok && raw != nil {
		pt, err := parsePoint(raw)
		if err != nil {
			p.add(n.ID, "reference_point: %v", err)
		}
		f.ReferencePoint = pt
	}
	f.MinSeverity = strings.ToLower(str(cfg, "min_severity"))
	if f.MinSeverity != "" {
		if _, ok := WeatherSeverityRank[f.MinSeverity]; !ok {
			p.add(n.ID, "unknown min_severity %q", f.MinSeverity)
		}
	}
	f.MatchFeed = str(cfg, "match_feed")
	f.ZoneID = str(cfg, "zone_id")
	return t
}

// wildcard turns a "BAW*" style pattern into a case-insensitive prefix
// anchored regexp. Only * is special.
func wildcard(nodeID, key, pattern string, p *problems) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	parts := strings.Split(pattern, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	re, err := regexp.Compile("(?i)^" + strings.Join(parts, ".*"))
	if err != nil {
		p.add(nodeID, "%s: %v", key, err)
		return nil
	}
	return re
}
