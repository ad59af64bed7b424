// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package state

import "time"

// RateKey identifies one rate_limit node's window for one object.
type RateKey struct {
	FlowID   string
	NodeID   string
	ObjectID string // object_id or models.GlobalObjectKey
}

// slidingLog holds pass timestamps in ascending order.
type slidingLog struct {
	times []time.Time
}

// trim drops timestamps at or before cutoff. Must be called with the shard
// lock held.
func (l *slidingLog) trim(cutoff time.Time) {
	i := 0
	for i < len(l.times) && !l.times[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.times = append(l.times[:0], l.times[i:]...)
	}
}

func (l *slidingLog) newest() time.Time {
	if len(l.times) == 0 {
		return time.Time{}
	}
	return l.times[len(l.times)-1]
}

// RateLimiter is an exact sliding-window log per key. Unlike a bucketed
// counter it never admits a burst at a bucket boundary.
type RateLimiter struct {
	m *shardedMap[RateKey, *slidingLog]
}

// NewRateLimiter creates a limiter with n shards.
func NewRateLimiter(n int) *RateLimiter {
	return &RateLimiter{
		m: newShardedMap[RateKey, *slidingLog](n, func(k RateKey) uint32 {
			return hashStrings(k.FlowID, k.NodeID, k.ObjectID)
		}),
	}
}

// Allow passes when fewer than maxEvents passes were recorded in (now-window, now]
// and records this pass. A failed check records nothing.
func (r *RateLimiter) Allow(key RateKey, maxEvents int, window time.Duration, now time.Time) bool {
	allowed := false
	r.m.with(key, func(m map[RateKey]*slidingLog) {
		l := m[key]
		if l == nil {
			l = &slidingLog{}
			m[key] = l
		}
		l.trim(now.Add(-window))
		if len(l.times) >= maxEvents {
			return
		}
		// Keep ascending order even for out-of-order event times.
		i := len(l.times)
		for i > 0 && l.times[i-1].After(now) {
			i--
		}
		l.times = append(l.times, time.Time{})
		copy(l.times[i+1:], l.times[i:])
		l.times[i] = now
		allowed = true
	})
	return allowed
}

// Count returns the passes currently recorded for key within window.
func (r *RateLimiter) Count(key RateKey, window time.Duration, now time.Time) int {
	n := 0
	r.m.with(key, func(m map[RateKey]*slidingLog) {
		if l := m[key]; l != nil {
			cutoff := now.Add(-window)
			for _, t := range l.times {
				if t.After(cutoff) {
					n++
				}
			}
		}
	})
	return n
}

// Prune drops keys whose newest pass is before cutoff.
func (r *RateLimiter) Prune(cutoff time.Time) int {
	return r.m.deleteIf(func(_ RateKey, l *slidingLog) bool {
		return l == nil || l.newest().Before(cutoff)
	})
}

// ForgetFlow drops every window for a flow.
func (r *RateLimiter) ForgetFlow(flowID string) int {
	return r.m.deleteIf(func(k RateKey, _ *slidingLog) bool { return k.FlowID == flowID })
}

// Len returns the number of keys.
func (r *RateLimiter) Len() int {
	return r.m.len()
}
