// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package state

import (
	"slices"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
)

const tableObjects = "object_state"

// ObjectState is the lifecycle memory for one object_id.
type ObjectState struct {
	ObjectID       string           `json:"object_id"`
	ObjectType     string           `json:"object_type"`
	FirstSeen      time.Time        `json:"first_seen"`
	LastSeen       time.Time        `json:"last_seen"`
	PrevLastSeen   time.Time        `json:"prev_last_seen,omitempty"`
	DetectionCount int64            `json:"detection_count"`
	ZoneIDs        []string         `json:"zone_ids"`
	Location       *models.Location `json:"location,omitempty"`
}

// InZone reports whether the object is currently inside zoneID.
func (s *ObjectState) InZone(zoneID string) bool {
	_, found := slices.BinarySearch(s.ZoneIDs, zoneID)
	return found
}

// Gap is the time between this detection and the previous one. Zero for a
// first sighting.
func (s *ObjectState) Gap() time.Duration {
	if s.PrevLastSeen.IsZero() {
		return 0
	}
	return s.LastSeen.Sub(s.PrevLastSeen)
}

func (s *ObjectState) clone() ObjectState {
	c := *s
	c.ZoneIDs = slices.Clone(s.ZoneIDs)
	if s.Location != nil {
		loc := *s.Location
		c.Location = &loc
	}
	return c
}

func (s *ObjectState) corrupt() string {
	switch {
	case s.DetectionCount < 1:
		return "non-positive detection count"
	case s.FirstSeen.IsZero():
		return "missing first_seen"
	case s.LastSeen.Before(s.FirstSeen):
		return "last_seen before first_seen"
	}
	return ""
}

// ZoneUpdate describes how an observation changes zone membership.
type ZoneUpdate struct {
	// Recompute replaces membership with Computed. Set when the event
	// carries a usable location.
	Recompute bool
	Computed  []string
	// Enter and Exit apply explicit zone_entry / zone_exit events after
	// any recompute.
	Enter string
	Exit  string
}

func (u ZoneUpdate) apply(prev []string) []string {
	var zones []string
	if u.Recompute {
		zones = slices.Clone(u.Computed)
	} else {
		zones = slices.Clone(prev)
	}
	if u.Enter != "" && !slices.Contains(zones, u.Enter) {
		zones = append(zones, u.Enter)
	}
	if u.Exit != "" {
		zones = slices.DeleteFunc(zones, func(z string) bool { return z == u.Exit })
	}
	slices.Sort(zones)
	return slices.Compact(zones)
}

// Observation is the result of recording one event for an object.
type Observation struct {
	Prev    ObjectState // zero value when the object was new
	Cur     ObjectState
	Existed bool
}

// ObjectTracker is the shared per-object memory used by every flow.
type ObjectTracker struct {
	m         *shardedMap[string, *ObjectState]
	onCorrupt CorruptionHandler
}

// NewObjectTracker creates a tracker with n shards (DefaultShards if n <= 0).
func NewObjectTracker(n int, onCorrupt CorruptionHandler) *ObjectTracker {
	return &ObjectTracker{
		m:         newShardedMap[string, *ObjectState](n, func(k string) uint32 { return hashStrings(k) }),
		onCorrupt: onCorrupt,
	}
}

// Observe records a detection of objectID at now and returns the states
// before and after. Updates for the same object are serialized.
func (t *ObjectTracker) Observe(objectID, objectType string, loc *models.Location, zones ZoneUpdate, now time.Time) Observation {
	var obs Observation
	t.m.with(objectID, func(m map[string]*ObjectState) {
		st, ok := m[objectID]
		if ok && st != nil {
			if reason := st.corrupt(); reason != "" {
				delete(m, objectID)
				ok = false
				notify(t.onCorrupt, tableObjects, objectID, reason)
			}
		}
		if !ok || st == nil {
			st = &ObjectState{ObjectID: objectID, FirstSeen: now, LastSeen: now}
			m[objectID] = st
		} else {
			obs.Existed = true
			obs.Prev = st.clone()
		}

		if obs.Existed {
			st.PrevLastSeen = st.LastSeen
			if now.After(st.LastSeen) {
				st.LastSeen = now
			}
		}
		st.DetectionCount++
		if objectType != "" {
			st.ObjectType = objectType
		}
		if !loc.IsZero() {
			l := *loc
			st.Location = &l
		}
		st.ZoneIDs = zones.apply(st.ZoneIDs)
		obs.Cur = st.clone()
	})
	return obs
}

// Get returns a copy of the object's state.
func (t *ObjectTracker) Get(objectID string) (ObjectState, bool) {
	var (
		c  ObjectState
		ok bool
	)
	t.m.with(objectID, func(m map[string]*ObjectState) {
		if st := m[objectID]; st != nil {
			c, ok = st.clone(), true
		}
	})
	return c, ok
}

// Len returns the number of tracked objects.
func (t *ObjectTracker) Len() int {
	return t.m.len()
}

// Prune forgets objects not seen since cutoff.
func (t *ObjectTracker) Prune(cutoff time.Time) int {
	return t.m.deleteIf(func(_ string, st *ObjectState) bool {
		return st == nil || st.LastSeen.Before(cutoff)
	})
}

// Put replaces an object's state. Used to seed dry runs.
func (t *ObjectTracker) Put(st ObjectState) {
	c := st.clone()
	t.m.with(st.ObjectID, func(m map[string]*ObjectState) { m[st.ObjectID] = &c })
}
