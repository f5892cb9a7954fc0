// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache implements a process-local TTL cache with hit/miss metrics
// and prefix invalidation. Entries expire on read; there is no background
// sweeper. Safe for concurrent use.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
)

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a named TTL key-value store.
type Cache struct {
	mu     sync.Mutex
	name   string
	ttl    time.Duration
	data   map[string]entry
	hits   uint64
	misses uint64
	tracer observability.Tracer

	// now is swappable so expiry can be tested without sleeping.
	now func() time.Time
}

// Stats is a point-in-time snapshot of cache metrics.
type Stats struct {
	Name       string `json:"name"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Size       int    `json:"size"`
	HitRate    string `json:"hit_rate"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// New creates a cache with the given name and entry TTL.
func New(name string, ttl time.Duration) *Cache {
	return &Cache{
		name: name,
		ttl:  ttl,
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// WithTracer attaches a tracer; hit/miss counts are then forwarded as
// metrics on every lookup.
func (c *Cache) WithTracer(t observability.Tracer) *Cache {
	c.mu.Lock()
	c.tracer = t
	c.mu.Unlock()
	return c
}

// Get returns the value for key if it was stored within the TTL window.
// Expired entries are removed and reported as misses.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.data[key]
	if ok && c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.data, key)
		ok = false
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	tracer := c.tracer
	c.mu.Unlock()

	if tracer != nil {
		outcome := "miss"
		if ok {
			outcome = "hit"
		}
		tracer.RecordMetric("cache.lookup", 1, map[string]string{
			"cache": c.name, "outcome": outcome,
		})
	}
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, resetting its TTL window.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.data[key] = entry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes a single key. Returns true if the key was present.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	delete(c.data, key)
	return ok
}

// InvalidatePattern removes every key with the given prefix and returns the
// number of entries removed.
func (c *Cache) InvalidatePattern(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

// Clear removes all entries. Metrics counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.data = make(map[string]entry)
	c.mu.Unlock()
}

// Reset clears entries and zeroes the hit/miss counters. Intended for tests
// that need pristine metrics between cases.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.data = make(map[string]entry)
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
}

// Stats returns a snapshot of the cache metrics. Hit rate is formatted with
// one decimal, e.g. "66.7%"; zero lookups yield "0.0%".
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := 0.0
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Name:       c.name,
		Hits:       c.hits,
		Misses:     c.misses,
		Size:       len(c.data),
		HitRate:    fmt.Sprintf("%.1f%%", rate),
		TTLSeconds: int64(c.ttl / time.Second),
	}
}
