// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package state

import "time"

// TimerKey identifies one duration condition for one object in one flow.
type TimerKey struct {
	FlowID   string
	ObjectID string
	NodeID   string
}

type timer struct {
	startedAt time.Time
	touched   time.Time
}

// DurationTimers tracks how long a guarded condition has held continuously.
type DurationTimers struct {
	m *shardedMap[TimerKey, timer]
}

// NewDurationTimers creates a timer table with n shards.
func NewDurationTimers(n int) *DurationTimers {
	return &DurationTimers{
		m: newShardedMap[TimerKey, timer](n, func(k TimerKey) uint32 {
			return hashStrings(k.FlowID, k.ObjectID, k.NodeID)
		}),
	}
}

// Observe feeds one evaluation of the guarded condition.
//
// When met is false the timer is deleted and the result is false: there is
// no partial credit. When met is true a missing timer starts at now. The
// result is true once the timer has run for at least minDur.
func (d *DurationTimers) Observe(key TimerKey, met bool, minDur time.Duration, now time.Time) (bool, time.Duration) {
	var (
		passed  bool
		elapsed time.Duration
	)
	d.m.with(key, func(m map[TimerKey]timer) {
		if !met {
			delete(m, key)
			return
		}
		t, ok := m[key]
		if !ok {
			t = timer{startedAt: now}
		}
		t.touched = now
		m[key] = t
		elapsed = now.Sub(t.startedAt)
		passed = elapsed >= 0 && elapsed >= minDur
	})
	return passed, elapsed
}

// StartedAt returns when the timer for key started.
func (d *DurationTimers) StartedAt(key TimerKey) (time.Time, bool) {
	t, ok := d.m.get(key)
	return t.startedAt, ok
}

// Prune removes timers not evaluated since cutoff.
func (d *DurationTimers) Prune(cutoff time.Time) int {
	return d.m.deleteIf(func(_ TimerKey, t timer) bool { return t.touched.Before(cutoff) })
}

// ForgetFlow drops every timer for a flow.
func (d *DurationTimers) ForgetFlow(flowID string) int {
	return d.m.deleteIf(func(k TimerKey, _ timer) bool { return k.FlowID == flowID })
}

// Len returns the number of running timers.
func (d *DurationTimers) Len() int {
	return d.m.len()
}
