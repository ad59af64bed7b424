// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

// Package geo provides the geofence primitives used by flow conditions:
// boundary-inclusive point-in-polygon, great-circle distance, and zones.
//
// Every function here is pure and safe for concurrent use.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// edgeEpsilon is the tolerance, in degrees, for treating a point as lying
// on a polygon edge. About 1cm at the equator.
const edgeEpsilon = 1e-7

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" koanf:"lat"`
	Lon float64 `json:"lon" koanf:"lon"`
}

// HaversineKm returns the great-circle distance between a and b.
func HaversineKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180.0
	dLon := (b.Lon - a.Lon) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// RoundTo2 rounds a distance for display, matching the precision used in
// alert templates.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PointInPolygon reports whether p is inside ring using ray casting. Points
// on an edge or vertex are inside. The ring may be open or closed and in
// either winding; fewer than three vertices is never inside.
func PointInPolygon(p Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(p, ring[j], ring[i]) {
			return true
		}
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, yj := ring[i].Lat, ring[j].Lat
		xi, xj := ring[i].Lon, ring[j].Lon
		if (yi > p.Lat) != (yj > p.Lat) {
			xCross := (xj-xi)*(p.Lat-yi)/(yj-yi) + xi
			if p.Lon < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// onSegment reports whether p lies on the segment a-b within edgeEpsilon.
func onSegment(p, a, b Point) bool {
	cross := (b.Lon-a.Lon)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lon-a.Lon)
	length := math.Hypot(b.Lon-a.Lon, b.Lat-a.Lat)
	if length == 0 {
		return math.Abs(p.Lat-a.Lat) <= edgeEpsilon && math.Abs(p.Lon-a.Lon) <= edgeEpsilon
	}
	if math.Abs(cross)/length > edgeEpsilon {
		return false
	}
	return p.Lon >= math.Min(a.Lon, b.Lon)-edgeEpsilon &&
		p.Lon <= math.Max(a.Lon, b.Lon)+edgeEpsilon &&
		p.Lat >= math.Min(a.Lat, b.Lat)-edgeEpsilon &&
		p.Lat <= math.Max(a.Lat, b.Lat)+edgeEpsilon
}

// WithinRadius reports whether p is at most radiusKm from center, and the
// distance. A point exactly on the circle is inside.
func WithinRadius(p, center Point, radiusKm float64) (bool, float64) {
	d := HaversineKm(p, center)
	return d <= radiusKm, d
}
