// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package auth

import (
	"sync"
	"time"
)

type lockoutEntry struct {
	failures    int
	lockedUntil time.Time
	lockouts    int
}

// Lockout locks a username after repeated failed logins. Each subsequent
// lockout doubles the duration, capped at 24h.
type Lockout struct {
	maxAttempts int
	duration    time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*lockoutEntry
}

const maxLockout = 24 * time.Hour

// NewLockout creates a tracker. maxAttempts <= 0 disables locking.
func NewLockout(maxAttempts int, duration time.Duration) *Lockout {
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	return &Lockout{
		maxAttempts: maxAttempts,
		duration:    duration,
		now:         time.Now,
		entries:     make(map[string]*lockoutEntry),
	}
}

// Locked reports whether username is locked and for how much longer.
func (l *Lockout) Locked(username string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[username]
	if !ok || e.lockedUntil.IsZero() {
		return false, 0
	}
	remaining := e.lockedUntil.Sub(l.now())
	if remaining <= 0 {
		e.lockedUntil = time.Time{}
		e.failures = 0
		return false, 0
	}
	return true, remaining
}

// Fail records a failed attempt and reports whether it triggered a lock.
func (l *Lockout) Fail(username string) bool {
	if l.maxAttempts <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[username]
	if !ok {
		e = &lockoutEntry{}
		l.entries[username] = e
	}
	e.failures++
	if e.failures < l.maxAttempts {
		return false
	}
	d := l.duration << e.lockouts
	if d <= 0 || d > maxLockout {
		d = maxLockout
	}
	e.lockouts++
	e.failures = 0
	e.lockedUntil = l.now().Add(d)
	return true
}

// Reset clears the failures for username after a successful login.
func (l *Lockout) Reset(username string) {
	l.mu.Lock()
	delete(l.entries, username)
	l.mu.Unlock()
}
