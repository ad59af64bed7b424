// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package state

import (
	"hash/fnv"
	"sync"
)

// DefaultShards is the shard count used when a table is created with n <= 0.
const DefaultShards = 32

type shard[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
}

// shardedMap partitions entries by key hash. Callers lock one shard at a
// time; there is no operation that holds two shard locks.
type shardedMap[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint32
}

func newShardedMap[K comparable, V any](n int, hash func(K) uint32) *shardedMap[K, V] {
	if n <= 0 {
		n = DefaultShards
	}
	s := &shardedMap[K, V]{shards: make([]*shard[K, V], n), hash: hash}
	for i := range s.shards {
		s.shards[i] = &shard[K, V]{m: make(map[K]V)}
	}
	return s
}

func (s *shardedMap[K, V]) shardFor(key K) *shard[K, V] {
	return s.shards[s.hash(key)%uint32(len(s.shards))]
}

// with runs fn with the key's shard locked.
func (s *shardedMap[K, V]) with(key K, fn func(m map[K]V)) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fn(sh.m)
}

func (s *shardedMap[K, V]) get(key K) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.m[key]
	return v, ok
}

func (s *shardedMap[K, V]) len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.m)
		sh.mu.Unlock()
	}
	return n
}

// deleteIf removes every entry for which drop returns true and returns the
// number removed. Shards are visited one at a time.
func (s *shardedMap[K, V]) deleteIf(drop func(K, V) bool) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.m {
			if drop(k, v) {
				delete(sh.m, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// rangeAll calls fn for every entry, one shard at a time.
func (s *shardedMap[K, V]) rangeAll(fn func(K, V)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.m {
			fn(k, v)
		}
		sh.mu.Unlock()
	}
}

func hashStrings(parts ...string) uint32 {
	h := fnv.New32a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(p))
	}
	return h.Sum32()
}
