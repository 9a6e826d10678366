// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package querycache

import (
	"container/list"
	"time"
)

// Default configuration values.
const (
	// DefaultMaxSize is the default maximum number of cached queries.
	DefaultMaxSize = 1000

	// DefaultMaxMemoryBytes is the default memory budget (64 MiB).
	DefaultMaxMemoryBytes = 64 * 1024 * 1024

	// DefaultTTL is the default entry lifetime.
	DefaultTTL = 15 * time.Minute

	// DefaultStalenessWindow is how long an entry may go unaccessed before
	// the second eviction pass considers it stale.
	DefaultStalenessWindow = time.Hour

	// oversizeFraction rejects values larger than this fraction of the
	// memory budget: one giant result must not dominate the cache.
	oversizeFraction = 0.10
)

// entry is one cached query result. Owned exclusively by the cache; all
// access happens under the cache mutex.
type entry struct {
	key          string
	value        any
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int64
	ttl          time.Duration
	sizeBytes    int64
	complexity   float64
	lruElement   *list.Element
}

// isExpired is a pure function of createdAt+ttl and the supplied clock.
func (e *entry) isExpired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.Sub(e.createdAt) > e.ttl
}

// isStale reports whether the entry has gone unaccessed for the window.
func (e *entry) isStale(now time.Time, window time.Duration) bool {
	return now.Sub(e.lastAccessed) > window
}

// Options configures a QueryCache.
type Options struct {
	// MaxSize is the maximum number of entries. Enforced after every Put.
	MaxSize int

	// MaxMemoryBytes is the serialized-size budget across all entries.
	MaxMemoryBytes int64

	// DefaultTTL applies when Put is not given an explicit TTL.
	DefaultTTL time.Duration

	// StalenessWindow bounds the second eviction pass.
	StalenessWindow time.Duration
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		MaxSize:         DefaultMaxSize,
		MaxMemoryBytes:  DefaultMaxMemoryBytes,
		DefaultTTL:      DefaultTTL,
		StalenessWindow: DefaultStalenessWindow,
	}
}

// Option mutates Options.
type Option func(*Options)

// WithMaxSize sets the entry-count limit.
func WithMaxSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxSize = n
		}
	}
}

// WithMaxMemoryBytes sets the memory budget.
func WithMaxMemoryBytes(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxMemoryBytes = n
		}
	}
}

// WithDefaultTTL sets the default entry lifetime.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DefaultTTL = d
		}
	}
}

// WithStalenessWindow sets the staleness window for eviction pass two.
func WithStalenessWindow(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.StalenessWindow = d
		}
	}
}

// Statistics is a point-in-time snapshot of cache behavior.
type Statistics struct {
	Entries            int     `json:"entries"`
	Hits               int64   `json:"hits"`
	Misses             int64   `json:"misses"`
	HitRate            float64 `json:"hit_rate"`
	Evictions          int64   `json:"evictions"`
	Rejections         int64   `json:"rejections"`
	MemoryUsageBytes   int64   `json:"memory_usage_bytes"`
	MaxMemoryBytes     int64   `json:"max_memory_bytes"`
	AvgQueryComplexity float64 `json:"avg_query_complexity"`
}
