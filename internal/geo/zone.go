// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
)

// CoordOrder names the pair order used by an upstream zone store.
type CoordOrder string

const (
	OrderLatLon CoordOrder = "latlon"
	OrderLonLat CoordOrder = "lonlat"
	OrderAuto   CoordOrder = "auto"
)

// ErrInvalidZone is returned for zones that are neither a polygon nor a circle.
var ErrInvalidZone = errors.New("invalid zone")

// ZoneSpec is the boundary representation of a zone as supplied by the
// zones collaborator or the config file.
type ZoneSpec struct {
	ID          string      `json:"id" koanf:"id"`
	Name        string      `json:"name" koanf:"name"`
	Coordinates [][]float64 `json:"coordinates,omitempty" koanf:"coordinates"`
	CoordOrder  CoordOrder  `json:"coord_order,omitempty" koanf:"coord_order"`
	CentreLat   *float64    `json:"centre_lat,omitempty" koanf:"centre_lat"`
	CentreLon   *float64    `json:"centre_lon,omitempty" koanf:"centre_lon"`
	RadiusKm    float64     `json:"radius_km,omitempty" koanf:"radius_km"`
}

// Zone is a normalized polygon or centre+radius region.
type Zone struct {
	ID       string
	Name     string
	Polygon  []Point
	Center   *Point
	RadiusKm float64
}

// Membership is the result of testing a point against a zone.
type Membership struct {
	Inside      bool
	DistanceKm  float64
	HasDistance bool
}

// DisplayName returns the zone name, falling back to its ID.
func (z *Zone) DisplayName() string {
	if z.Name != "" {
		return z.Name
	}
	return z.ID
}

// Test classifies p against the zone. Polygon zones take precedence over
// a centre+radius when both are present.
func (z *Zone) Test(p Point) Membership {
	if len(z.Polygon) >= 3 {
		return Membership{Inside: PointInPolygon(p, z.Polygon)}
	}
	if z.Center != nil && z.RadiusKm > 0 {
		inside, d := WithinRadius(p, *z.Center, z.RadiusKm)
		return Membership{Inside: inside, DistanceKm: d, HasDistance: true}
	}
	return Membership{}
}

// NewZone validates spec and normalizes its coordinates to Point{Lat, Lon}.
func NewZone(spec ZoneSpec) (Zone, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return Zone{}, fmt.Errorf("%w: missing id", ErrInvalidZone)
	}
	z := Zone{ID: spec.ID, Name: spec.Name, RadiusKm: spec.RadiusKm}

	if len(spec.Coordinates) > 0 {
		ring, err := NormalizeRing(spec.Coordinates, spec.CoordOrder)
		if err != nil {
			return Zone{}, fmt.Errorf("zone %s: %w", spec.ID, err)
		}
		z.Polygon = ring
	}
	if spec.CentreLat != nil && spec.CentreLon != nil {
		z.Center = &Point{Lat: *spec.CentreLat, Lon: *spec.CentreLon}
	}
	if len(z.Polygon) < 3 && (z.Center == nil || z.RadiusKm <= 0) {
		return Zone{}, fmt.Errorf("%w: %s needs >=3 vertices or centre and radius_km", ErrInvalidZone, spec.ID)
	}
	return z, nil
}

// NormalizeRing converts coordinate pairs to Points. With OrderAuto (or an
// empty order) the order is inferred from value ranges: a first component
// outside ±90 can only be a longitude. Ambiguous rings are read as lat,lon.
func NormalizeRing(coords [][]float64, order CoordOrder) ([]Point, error) {
	if order == "" {
		order = OrderAuto
	}
	if order == OrderAuto {
		order = detectOrder(coords)
	}
	if order != OrderLatLon && order != OrderLonLat {
		return nil, fmt.Errorf("%w: unknown coord_order %q", ErrInvalidZone, order)
	}

	ring := make([]Point, 0, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: vertex %d has %d components", ErrInvalidZone, i, len(c))
		}
		p := Point{Lat: c[0], Lon: c[1]}
		if order == OrderLonLat {
			p = Point{Lat: c[1], Lon: c[0]}
		}
		if math.Abs(p.Lat) > 90 || math.Abs(p.Lon) > 180 {
			return nil, fmt.Errorf("%w: vertex %d out of range", ErrInvalidZone, i)
		}
		ring = append(ring, p)
	}
	return ring, nil
}

func detectOrder(coords [][]float64) CoordOrder {
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		if math.Abs(c[0]) > 90 {
			return OrderLonLat
		}
		if math.Abs(c[1]) > 90 {
			return OrderLatLon
		}
	}
	return OrderLatLon
}

// ZoneSet is an immutable, atomically replaceable collection of zones.
type ZoneSet struct {
	current atomic.Pointer[zoneIndex]
}

type zoneIndex struct {
	ordered []Zone
	byID    map[string]int
}

// NewZoneSet builds a set from already-normalized zones.
func NewZoneSet(zones []Zone) *ZoneSet {
	s := &ZoneSet{}
	s.Replace(zones)
	return s
}

// NewZoneSetFromSpecs normalizes specs, returning the valid zones and an
// error joining every rejected spec.
func NewZoneSetFromSpecs(specs []ZoneSpec) (*ZoneSet, error) {
	zones := make([]Zone, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		z, err := NewZone(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		zones = append(zones, z)
	}
	return NewZoneSet(zones), errors.Join(errs...)
}

// Replace swaps in a new zone list.
func (s *ZoneSet) Replace(zones []Zone) {
	idx := &zoneIndex{ordered: make([]Zone, len(zones)), byID: make(map[string]int, len(zones))}
	copy(idx.ordered, zones)
	sort.SliceStable(idx.ordered, func(i, j int) bool { return idx.ordered[i].ID < idx.ordered[j].ID })
	for i, z := range idx.ordered {
		idx.byID[z.ID] = i
	}
	s.current.Store(idx)
}

// Zones returns a copy of the current zones ordered by ID.
func (s *ZoneSet) Zones() []Zone {
	idx := s.current.Load()
	if idx == nil {
		return nil
	}
	out := make([]Zone, len(idx.ordered))
	for i, z := range idx.ordered {
		out[i] = z.clone()
	}
	return out
}

func (z Zone) clone() Zone {
	z.Polygon = append([]Point(nil), z.Polygon...)
	if z.Center != nil {
		c := *z.Center
		z.Center = &c
	}
	return z
}

// Zone returns the zone with the given ID.
func (s *ZoneSet) Zone(id string) (Zone, bool) {
	idx := s.current.Load()
	if idx == nil {
		return Zone{}, false
	}
	i, ok := idx.byID[id]
	if !ok {
		return Zone{}, false
	}
	return idx.ordered[i], true
}
