// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package state

import (
	"sort"
	"time"

	"github.com/tomtom215/meshguard/internal/models"
)

const tableCooldowns = "cooldowns"

// CooldownKey identifies a flow-level suppression entry.
type CooldownKey struct {
	FlowID   string
	ObjectID string // object_id or models.GlobalObjectKey
}

// CooldownTable is the flow-level firing gate.
type CooldownTable struct {
	m         *shardedMap[CooldownKey, models.CooldownRecord]
	onCorrupt CorruptionHandler
}

// NewCooldownTable creates a table with n shards.
func NewCooldownTable(n int, onCorrupt CorruptionHandler) *CooldownTable {
	return &CooldownTable{
		m: newShardedMap[CooldownKey, models.CooldownRecord](n, func(k CooldownKey) uint32 {
			return hashStrings(k.FlowID, k.ObjectID)
		}),
		onCorrupt: onCorrupt,
	}
}

// TryAcquire checks the cooldown for key and, if it has elapsed, records a
// fire at now. Check and record happen under one lock so two concurrent
// evaluations for the same key cannot both fire. The returned record is
// the updated entry when acquired, or the blocking entry when not.
func (c *CooldownTable) TryAcquire(key CooldownKey, cooldown time.Duration, now time.Time) (models.CooldownRecord, bool) {
	var (
		rec      models.CooldownRecord
		acquired bool
	)
	c.m.with(key, func(m map[CooldownKey]models.CooldownRecord) {
		cur, ok := m[key]
		if ok && cur.FireCount < 0 {
			delete(m, key)
			ok = false
			notify(c.onCorrupt, tableCooldowns, key.FlowID+"/"+key.ObjectID, "negative fire count")
		}
		if ok && now.Sub(cur.LastFiredAt) < cooldown {
			rec = cur
			return
		}
		rec = models.CooldownRecord{
			FlowID:      key.FlowID,
			ObjectID:    key.ObjectID,
			LastFiredAt: now,
			FireCount:   cur.FireCount + 1,
		}
		m[key] = rec
		acquired = true
	})
	return rec, acquired
}

// Get returns the entry for key.
func (c *CooldownTable) Get(key CooldownKey) (models.CooldownRecord, bool) {
	return c.m.get(key)
}

// Restore loads persisted records, keeping the newer entry on conflict.
func (c *CooldownTable) Restore(records []models.CooldownRecord) {
	for _, r := range records {
		key := CooldownKey{FlowID: r.FlowID, ObjectID: r.ObjectID}
		c.m.with(key, func(m map[CooldownKey]models.CooldownRecord) {
			if cur, ok := m[key]; ok && cur.LastFiredAt.After(r.LastFiredAt) {
				return
			}
			m[key] = r
		})
	}
}

// Snapshot returns every entry ordered by flow then object.
func (c *CooldownTable) Snapshot() []models.CooldownRecord {
	var out []models.CooldownRecord
	c.m.rangeAll(func(_ CooldownKey, r models.CooldownRecord) { out = append(out, r) })
	sort.Slice(out, func(i, j int) bool {
		if out[i].FlowID != out[j].FlowID {
			return out[i].FlowID < out[j].FlowID
		}
		return out[i].ObjectID < out[j].ObjectID
	})
	return out
}

// ForgetFlow drops every entry for a deleted flow.
func (c *CooldownTable) ForgetFlow(flowID string) int {
	return c.m.deleteIf(func(k CooldownKey, _ models.CooldownRecord) bool { return k.FlowID == flowID })
}

// Len returns the number of entries.
func (c *CooldownTable) Len() int {
	return c.m.len()
}
