// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package templating

import (
	"strconv"
	"strings"

	"github.com/tomtom215/meshguard/internal/models"
)

// TimestampLayout is the UTC layout used for {{timestamp}}.
const TimestampLayout = "2006-01-02T15:04:05Z"

// coordDecimals is the minimum number of decimals rendered for lat/lon.
const coordDecimals = 3

// Vocabulary lists the fixed context keys, in documentation order. Any
// other data key of the event is also available by name.
var Vocabulary = []string{
	"object_id", "object_type", "timestamp", "severity", "flow_name",
	"lat", "lon", "alt",
	"rssi", "speed", "heading", "callsign", "squawk", "alias",
	"zone_name", "distance_km",
}

// BuildContext flattens an event, its flow and the evaluation scratch
// values (zone_name, distance_km) into a substitution context. Scratch
// values override event data of the same name.
func BuildContext(event *models.Event, flowName string, severity models.Severity, scratch map[string]any) Context {
	ctx := Context{
		"object_id":   event.ObjectID,
		"object_type": event.ObjectType,
		"timestamp":   event.Time().Format(TimestampLayout),
		"severity":    string(severity),
		"flow_name":   flowName,
		"lat":         "",
		"lon":         "",
		"alt":         "",
	}
	if event.Location != nil {
		ctx["lat"] = FormatCoord(event.Location.Lat)
		ctx["lon"] = FormatCoord(event.Location.Lon)
		ctx["alt"] = models.ToString(event.Location.Alt)
	}

	lookup := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := scratch[k]; ok && v != nil {
				return models.ToString(v)
			}
			if v, ok := event.DataValue(k); ok {
				return models.ToString(v)
			}
		}
		return ""
	}

	ctx["rssi"] = lookup("rssi")
	ctx["speed"] = lookup("speed_kts", "speed")
	ctx["heading"] = lookup("heading", "track")
	ctx["callsign"] = lookup("callsign")
	ctx["squawk"] = lookup("squawk")
	ctx["alias"] = lookup("alias")
	ctx["zone_name"] = lookup("zone_name")
	ctx["distance_km"] = lookup("distance_km")

	for k, v := range event.Data {
		if _, exists := ctx[k]; !exists && v != nil {
			ctx[k] = models.ToString(v)
		}
	}
	for k, v := range scratch {
		if _, exists := ctx[k]; !exists && v != nil {
			ctx[k] = models.ToString(v)
		}
	}
	return ctx
}

// FormatCoord renders a coordinate in its shortest exact form with at
// least three decimals, so 55.87 renders as "55.870".
func FormatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s + "." + strings.Repeat("0", coordDecimals)
	}
	if decimals := len(s) - dot - 1; decimals < coordDecimals {
		s += strings.Repeat("0", coordDecimals-decimals)
	}
	return s
}
