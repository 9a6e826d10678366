// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package querycache caches expensive multi-entity Boolean query results
// with a complexity-aware admission policy, TTL expiry, and LRU eviction.
//
// Simple queries are deliberately never cached: the scoring in
// complexity.go gates admission so that cache overhead is only paid where
// recomputation is expensive.
package querycache

import (
	"container/list"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// QueryCache is a process-wide LRU+TTL cache for Boolean query results.
//
// Thread Safety:
//
//	Safe for concurrent use. All mutating operations execute under a single
//	mutex scoped to the cache instance; there is no per-entry locking.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently used
	options Options
	flight  singleflight.Group

	// currentMemoryBytes is maintained incrementally on every insert and
	// evict. It is never recomputed by scanning.
	currentMemoryBytes int64

	// Stats, guarded by mu.
	hits          int64
	misses        int64
	evictions     int64
	rejections    int64
	avgComplexity float64
}

// PutOption adjusts a single Put call.
type PutOption func(*putOptions)

type putOptions struct {
	ttl         time.Duration
	extraParams map[string]any
}

// WithTTL overrides the cache default TTL for this entry.
func WithTTL(d time.Duration) PutOption {
	return func(o *putOptions) { o.ttl = d }
}

// WithExtraParams adds discriminating parameters to the cache key.
func WithExtraParams(params map[string]any) PutOption {
	return func(o *putOptions) { o.extraParams = params }
}

// NewQueryCache creates a QueryCache with the given options.
func NewQueryCache(opts ...Option) *QueryCache {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &QueryCache{
		entries: make(map[string]*entry),
		lru:     list.New(),
		options: options,
	}
}

// Put caches a query result if it passes the admission policy.
//
// Description:
//
//	Scores the query (entity count + Boolean operator density), rejects
//	queries under the admission threshold, rejects values whose serialized
//	size exceeds 10% of the memory budget, then inserts and evicts back
//	within bounds. After every Put, len <= MaxSize and the memory total
//	is within budget.
//
// Outputs:
//
//	bool - True if the result was cached, false on rejection.
func (c *QueryCache) Put(queryType string, entities []string, expression string, result any, opts ...PutOption) bool {
	po := putOptions{ttl: c.options.DefaultTTL}
	for _, opt := range opts {
		opt(&po)
	}
	if po.ttl <= 0 {
		po.ttl = c.options.DefaultTTL
	}

	complexity := QueryComplexity(len(entities), expression)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Rolling EMA of complexity is tracked for every scored query,
	// admitted or not.
	c.avgComplexity = c.avgComplexity*0.9 + complexity*0.1

	if !ShouldAdmit(len(entities), complexity) {
		c.rejections++
		return false
	}

	size := serializedSize(result)
	if size > int64(float64(c.options.MaxMemoryBytes)*oversizeFraction) {
		c.rejections++
		return false
	}

	key := CacheKey(queryType, entities, expression, po.extraParams)
	now := time.Now()

	// Overwrite in place if the key already exists.
	if existing, ok := c.entries[key]; ok {
		c.currentMemoryBytes += size - existing.sizeBytes
		existing.value = result
		existing.createdAt = now
		existing.lastAccessed = now
		existing.ttl = po.ttl
		existing.sizeBytes = size
		existing.complexity = complexity
		c.lru.MoveToFront(existing.lruElement)
		c.evictLocked(now)
		return true
	}

	e := &entry{
		key:          key,
		value:        result,
		createdAt:    now,
		lastAccessed: now,
		ttl:          po.ttl,
		sizeBytes:    size,
		complexity:   complexity,
	}
	e.lruElement = c.lru.PushFront(key)
	c.entries[key] = e
	c.currentMemoryBytes += size

	c.evictLocked(now)
	return true
}

// Get retrieves a cached result.
//
// On hit, the entry's access metadata is updated and it moves to the
// most-recently-used position. TTL expiry is checked lazily here: expired
// entries are evicted and reported as misses.
func (c *QueryCache) Get(queryType string, entities []string, expression string, extraParams map[string]any) (any, bool) {
	key := CacheKey(queryType, entities, expression, extraParams)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.isExpired(now) {
		c.removeLocked(e)
		c.evictions++
		c.misses++
		return nil, false
	}

	e.lastAccessed = now
	e.accessCount++
	c.lru.MoveToFront(e.lruElement)
	c.hits++
	return e.value, true
}

// ComputeFunc produces a query result on a cache miss.
type ComputeFunc func(ctx context.Context) (any, error)

// GetOrCompute returns the cached result or computes it exactly once.
//
// Concurrent callers asking for the same key share one computation via
// singleflight; the computed result is then offered to Put (and may still
// be rejected by the admission policy).
func (c *QueryCache) GetOrCompute(ctx context.Context, queryType string, entities []string, expression string, compute ComputeFunc, opts ...PutOption) (any, bool, error) {
	var po putOptions
	for _, opt := range opts {
		opt(&po)
	}

	if value, ok := c.Get(queryType, entities, expression, po.extraParams); ok {
		return value, true, nil
	}

	key := CacheKey(queryType, entities, expression, po.extraParams)
	value, err, _ := c.flight.Do(key, func() (any, error) {
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(queryType, entities, expression, result, opts...)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, false, nil
}

// Invalidate removes one entry. Returns true if it was present.
func (c *QueryCache) Invalidate(queryType string, entities []string, expression string, extraParams map[string]any) bool {
	key := CacheKey(queryType, entities, expression, extraParams)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(e)
	return true
}

// Clear removes all entries.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.lru.Init()
	c.currentMemoryBytes = 0
}

// Len returns the current entry count.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// MemoryUsageBytes returns the incrementally-maintained memory total.
func (c *QueryCache) MemoryUsageBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentMemoryBytes
}

// Statistics returns a snapshot of cache behavior.
func (c *QueryCache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Statistics{
		Entries:            len(c.entries),
		Hits:               c.hits,
		Misses:             c.misses,
		HitRate:            hitRate,
		Evictions:          c.evictions,
		Rejections:         c.rejections,
		MemoryUsageBytes:   c.currentMemoryBytes,
		MaxMemoryBytes:     c.options.MaxMemoryBytes,
		AvgQueryComplexity: c.avgComplexity,
	}
}

// evictLocked restores the size and memory invariants after an insert.
//
// Three ordered passes:
//  1. remove all TTL-expired entries;
//  2. if still over the memory budget, remove stale entries (unaccessed
//     within the staleness window), least-accessed first;
//  3. if still over capacity or memory budget, strict LRU until within
//     bounds.
//
// Caller must hold c.mu.
func (c *QueryCache) evictLocked(now time.Time) {
	if len(c.entries) <= c.options.MaxSize && c.currentMemoryBytes <= c.options.MaxMemoryBytes {
		return
	}

	// Pass 1: expired entries.
	for _, e := range c.snapshotLocked() {
		if e.isExpired(now) {
			c.removeLocked(e)
			c.evictions++
		}
	}

	// Pass 2: stale entries, least-used first, only for memory pressure.
	if c.currentMemoryBytes > c.options.MaxMemoryBytes {
		stale := make([]*entry, 0)
		for _, e := range c.entries {
			if e.isStale(now, c.options.StalenessWindow) {
				stale = append(stale, e)
			}
		}
		sort.Slice(stale, func(i, j int) bool {
			return stale[i].accessCount < stale[j].accessCount
		})
		for _, e := range stale {
			if c.currentMemoryBytes <= c.options.MaxMemoryBytes {
				break
			}
			c.removeLocked(e)
			c.evictions++
		}
	}

	// Pass 3: strict LRU from the back.
	for (len(c.entries) > c.options.MaxSize || c.currentMemoryBytes > c.options.MaxMemoryBytes) && c.lru.Len() > 0 {
		back := c.lru.Back()
		if back == nil {
			break
		}
		key := back.Value.(string)
		if e, ok := c.entries[key]; ok {
			c.removeLocked(e)
			c.evictions++
		} else {
			c.lru.Remove(back)
		}
	}
}

// snapshotLocked copies the entry set so passes can delete while iterating.
func (c *QueryCache) snapshotLocked() []*entry {
	out := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// removeLocked deletes an entry and keeps the memory total exact.
// Caller must hold c.mu.
func (c *QueryCache) removeLocked(e *entry) {
	if e.lruElement != nil {
		c.lru.Remove(e.lruElement)
	}
	delete(c.entries, e.key)
	c.currentMemoryBytes -= e.sizeBytes
}

// serializedSize measures a value by its JSON encoding. Unencodable values
// get a conservative fixed cost instead of failing the Put.
func serializedSize(v any) int64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 1024
	}
	return int64(len(data))
}
