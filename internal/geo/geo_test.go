// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package geo

import (
	"errors"
	"math"
	"testing"
)

// airfield is a small square around Glasgow Prestwick-ish coordinates.
var airfield = []Point{
	{Lat: 55.86, Lon: -4.44},
	{Lat: 55.86, Lon: -4.42},
	{Lat: 55.88, Lon: -4.42},
	{Lat: 55.88, Lon: -4.44},
}

func TestHaversineKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		a, b      Point
		expected  float64
		tolerance float64
	}{
		{"NYC to London", Point{40.7128, -74.0060}, Point{51.5074, -0.1278}, 5570, 10},
		{"same point", Point{55.87, -4.431}, Point{55.87, -4.431}, 0, 1e-9},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111.19, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("HaversineKm() = %.3f, want %.3f ± %.3f", got, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestPointInPolygon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    Point
		ring []Point
		want bool
	}{
		{"centre", Point{55.870, -4.431}, airfield, true},
		{"outside east", Point{55.870, -4.40}, airfield, false},
		{"outside north", Point{55.90, -4.43}, airfield, false},
		{"on south edge", Point{55.86, -4.43}, airfield, true},
		{"on west edge", Point{55.87, -4.44}, airfield, true},
		{"on vertex", Point{55.88, -4.42}, airfield, true},
		{"degenerate ring", Point{0, 0}, []Point{{0, 0}, {1, 1}}, false},
		{"reversed winding", Point{55.870, -4.431}, reverse(airfield), true},
		{"closed ring", Point{55.870, -4.431}, append(append([]Point{}, airfield...), airfield[0]), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PointInPolygon(tt.p, tt.ring); got != tt.want {
				t.Errorf("PointInPolygon(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestWithinRadius_BoundaryInclusive(t *testing.T) {
	t.Parallel()

	center := Point{Lat: 55.87, Lon: -4.43}
	p := Point{Lat: 55.90, Lon: -4.40}
	radius := HaversineKm(p, center)

	inside, d := WithinRadius(p, center, radius)
	if !inside {
		t.Errorf("point at exactly radius %.6f km should be inside", radius)
	}
	if d != radius {
		t.Errorf("distance = %v, want %v", d, radius)
	}

	if inside, _ := WithinRadius(p, center, radius-0.001); inside {
		t.Error("point beyond radius should be outside")
	}
}

func TestNormalizeRing(t *testing.T) {
	t.Parallel()

	t.Run("explicit lonlat", func(t *testing.T) {
		t.Parallel()
		ring, err := NormalizeRing([][]float64{{-4.44, 55.86}, {-4.42, 55.86}, {-4.42, 55.88}}, OrderLonLat)
		if err != nil {
			t.Fatalf("NormalizeRing() error = %v", err)
		}
		if ring[0].Lat != 55.86 || ring[0].Lon != -4.44 {
			t.Errorf("ring[0] = %+v, want lat 55.86 lon -4.44", ring[0])
		}
	})

	t.Run("auto detects longitude first", func(t *testing.T) {
		t.Parallel()
		ring, err := NormalizeRing([][]float64{{151.2, -33.8}, {151.3, -33.8}, {151.3, -33.9}}, OrderAuto)
		if err != nil {
			t.Fatalf("NormalizeRing() error = %v", err)
		}
		if ring[0].Lat != -33.8 || ring[0].Lon != 151.2 {
			t.Errorf("ring[0] = %+v, want lat -33.8 lon 151.2", ring[0])
		}
	})

	t.Run("ambiguous defaults to latlon", func(t *testing.T) {
		t.Parallel()
		ring, err := NormalizeRing([][]float64{{55.86, -4.44}, {55.86, -4.42}, {55.88, -4.42}}, "")
		if err != nil {
			t.Fatalf("NormalizeRing() error = %v", err)
		}
		if ring[0].Lat != 55.86 {
			t.Errorf("ring[0].Lat = %v, want 55.86", ring[0].Lat)
		}
	})

	t.Run("short vertex", func(t *testing.T) {
		t.Parallel()
		_, err := NormalizeRing([][]float64{{55.86}}, OrderLatLon)
		if !errors.Is(err, ErrInvalidZone) {
			t.Errorf("error = %v, want ErrInvalidZone", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		t.Parallel()
		_, err := NormalizeRing([][]float64{{1, 2}}, "xy")
		if !errors.Is(err, ErrInvalidZone) {
			t.Errorf("error = %v, want ErrInvalidZone", err)
		}
	})
}

func TestZoneTestAndSet(t *testing.T) {
	t.Parallel()

	lat, lon := 55.87, -4.43
	specs := []ZoneSpec{
		{ID: "airfield", Name: "Airfield", Coordinates: [][]float64{{55.86, -4.44}, {55.86, -4.42}, {55.88, -4.42}, {55.88, -4.44}}, CoordOrder: OrderLatLon},
		{ID: "tower", CentreLat: &lat, CentreLon: &lon, RadiusKm: 1},
		{ID: "broken"},
	}

	set, err := NewZoneSetFromSpecs(specs)
	if err == nil {
		t.Fatal("expected error for broken zone")
	}
	if len(set.Zones()) != 2 {
		t.Fatalf("len(Zones()) = %d, want 2", len(set.Zones()))
	}

	af, ok := set.Zone("airfield")
	if !ok {
		t.Fatal("airfield zone missing")
	}
	if m := af.Test(Point{55.870, -4.431}); !m.Inside || m.HasDistance {
		t.Errorf("airfield.Test() = %+v, want inside without distance", m)
	}

	tower, _ := set.Zone("tower")
	m := tower.Test(Point{55.87, -4.43})
	if !m.Inside || !m.HasDistance || m.DistanceKm != 0 {
		t.Errorf("tower.Test() = %+v, want inside at 0 km", m)
	}
	if tower.DisplayName() != "tower" {
		t.Errorf("DisplayName() = %q, want fallback to ID", tower.DisplayName())
	}

	if _, ok := set.Zone("broken"); ok {
		t.Error("broken zone should have been rejected")
	}

	set.Replace(nil)
	if len(set.Zones()) != 0 {
		t.Error("Replace(nil) should clear the set")
	}
}

func TestZoneSet_ZonesReturnsCopy(t *testing.T) {
	t.Parallel()

	set := NewZoneSet([]Zone{
		{ID: "airfield", Polygon: []Point{{55.86, -4.44}, {55.86, -4.42}, {55.88, -4.42}}},
		{ID: "tower", Center: &Point{55.87, -4.43}, RadiusKm: 1},
	})

	zones := set.Zones()
	zones[0].ID = "changed"
	zones[0].Polygon[0] = Point{0, 0}
	zones[1].Center.Lat = 0

	af, ok := set.Zone("airfield")
	if !ok {
		t.Fatal("airfield zone missing after caller mutation")
	}
	if af.Polygon[0] != (Point{55.86, -4.44}) {
		t.Errorf("polygon vertex = %+v, want unchanged", af.Polygon[0])
	}
	if tower, _ := set.Zone("tower"); tower.Center.Lat != 55.87 {
		t.Errorf("tower centre = %+v, want unchanged", tower.Center)
	}
	if again := set.Zones(); again[0].ID != "airfield" {
		t.Errorf("Zones()[0].ID = %q, want airfield", again[0].ID)
	}
}

func reverse(ring []Point) []Point {
	out := make([]Point, len(ring))
	for i := range ring {
		out[len(ring)-1-i] = ring[i]
	}
	return out
}
