/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache implements the per-device command output cache.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/nettestlab/devicebroker/pkg/models"
)

// DefaultTTL is the freshness window applied when no TTL is configured.
const DefaultTTL = 3600 * time.Second

type entry struct {
	output    string
	createdAt time.Time
}

// Cache maps (hostname, command) pairs to command output with TTL-based
// freshness. Keys are matched exactly: differing whitespace or casing is a
// different key. Expiry is lazy; stale entries are purged on the read that
// finds them, never by a background sweep.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]map[string]entry
	now     func() time.Time
}

// New creates a Cache with the given TTL. A zero or negative TTL falls
// back to DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		ttl:     ttl,
		entries: make(map[string]map[string]entry),
		now:     time.Now,
	}
}

// SetClock overrides the cache's time source. Used by tests to make
// expiry deterministic.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// Get returns the cached output for (hostname, cmd) if present and fresh.
// A stale entry is removed and reported as a miss.
func (c *Cache) Get(hostname, cmd string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmds, ok := c.entries[hostname]
	if !ok {
		return "", false
	}

	e, ok := cmds[cmd]
	if !ok {
		return "", false
	}

	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(cmds, cmd)

		if len(cmds) == 0 {
			delete(c.entries, hostname)
		}

		return "", false
	}

	return e.output, true
}

// Set inserts or overwrites the entry for (hostname, cmd) with the
// current timestamp.
func (c *Cache) Set(hostname, cmd, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmds, ok := c.entries[hostname]
	if !ok {
		cmds = make(map[string]entry)
		c.entries[hostname] = cmds
	}

	cmds[cmd] = entry{output: output, createdAt: c.now()}
}

// Clear removes all entries for hostname. The connection manager calls
// this on session teardown so a fresh session never serves output
// attributed to a prior one.
func (c *Cache) Clear(hostname string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, hostname)
}

// Stats reports entry counts for one device by scanning its current
// entries. Expired-but-unread entries count toward Total until the next
// Get touches them.
func (c *Cache) Stats(hostname string) models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.statsLocked(hostname)
}

func (c *Cache) statsLocked(hostname string) models.CacheStats {
	var stats models.CacheStats

	now := c.now()

	for _, e := range c.entries[hostname] {
		stats.Total++

		if now.Sub(e.createdAt) < c.ttl {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}

	return stats
}

// Snapshot aggregates cache state across all devices for status
// reporting.
func (c *Cache) Snapshot() models.CommandCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.CommandCacheStats{
		DevicesWithCache: make([]string, 0, len(c.entries)),
		PerDeviceStats:   make(map[string]models.CacheStats, len(c.entries)),
	}

	for hostname := range c.entries {
		snap.DevicesWithCache = append(snap.DevicesWithCache, hostname)
		stats := c.statsLocked(hostname)
		snap.PerDeviceStats[hostname] = stats
		snap.TotalCachedCommands += stats.Total
	}

	sort.Strings(snap.DevicesWithCache)

	return snap
}
