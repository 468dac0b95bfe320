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

package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the cache's time source from tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	c := New(ttl)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c.SetClock(clock.Now)

	return c, clock
}

func TestGetReturnsFreshEntry(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	c.Set("sw1", "show version", "v1.2.3")

	clock.Advance(59 * time.Minute)

	out, ok := c.Get("sw1", "show version")
	require.True(t, ok)
	assert.Equal(t, "v1.2.3", out)
}

func TestGetExpiresEntryAtTTL(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	c.Set("sw1", "show version", "v1.2.3")

	// Freshness window is strict: age == TTL is already stale.
	clock.Advance(time.Hour)

	_, ok := c.Get("sw1", "show version")
	assert.False(t, ok)

	// The stale entry was purged on that read.
	assert.Equal(t, 0, c.Stats("sw1").Total)
}

func TestGetMissesOnUnknownKeys(t *testing.T) {
	c, _ := newTestCache(time.Hour)

	_, ok := c.Get("sw1", "show version")
	assert.False(t, ok)

	c.Set("sw1", "show version", "out")

	_, ok = c.Get("sw2", "show version")
	assert.False(t, ok)
}

func TestExactStringMatching(t *testing.T) {
	c, _ := newTestCache(time.Hour)

	c.Set("sw1", "show  version", "double space")

	_, ok := c.Get("sw1", "show version")
	assert.False(t, ok, "differing whitespace must be a different key")

	_, ok = c.Get("sw1", "SHOW  VERSION")
	assert.False(t, ok, "differing casing must be a different key")

	out, ok := c.Get("sw1", "show  version")
	require.True(t, ok)
	assert.Equal(t, "double space", out)
}

func TestSetOverwritesAndRefreshes(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	c.Set("sw1", "show clock", "12:00")

	clock.Advance(30 * time.Minute)
	c.Set("sw1", "show clock", "12:30")

	clock.Advance(45 * time.Minute)

	out, ok := c.Get("sw1", "show clock")
	require.True(t, ok)
	assert.Equal(t, "12:30", out, "overwrite must reset the entry's creation time")
}

func TestClearRemovesAllEntriesForDevice(t *testing.T) {
	c, _ := newTestCache(time.Hour)

	c.Set("sw1", "show version", "a")
	c.Set("sw1", "show interfaces", "b")
	c.Set("sw2", "show version", "c")

	c.Clear("sw1")

	_, ok := c.Get("sw1", "show version")
	assert.False(t, ok)

	_, ok = c.Get("sw1", "show interfaces")
	assert.False(t, ok)

	out, ok := c.Get("sw2", "show version")
	require.True(t, ok)
	assert.Equal(t, "c", out)
}

func TestStatsCountsExpiredUntilRead(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	c.Set("sw1", "show version", "a")

	clock.Advance(30 * time.Minute)
	c.Set("sw1", "show interfaces", "b")

	clock.Advance(45 * time.Minute)

	// First entry is 75 minutes old, second 45.
	stats := c.Stats("sw1")
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Valid)
	assert.Equal(t, 1, stats.Expired)

	// Reading the expired entry purges it.
	_, ok := c.Get("sw1", "show version")
	assert.False(t, ok)

	stats = c.Stats("sw1")
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Expired)
}

func TestSnapshotAggregatesAcrossDevices(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	devices := []string{"sw1", "sw2", "sw3"}

	// One command per device written early enough to expire, four fresh.
	for _, d := range devices {
		c.Set(d, "cmd-0", "stale")
	}

	clock.Advance(45 * time.Minute)

	for _, d := range devices {
		for i := 1; i < 5; i++ {
			c.Set(d, fmt.Sprintf("cmd-%d", i), "fresh")
		}
	}

	clock.Advance(30 * time.Minute)

	snap := c.Snapshot()
	assert.Equal(t, devices, snap.DevicesWithCache)
	assert.Equal(t, 15, snap.TotalCachedCommands, "expired-but-unread entries still count")

	for _, d := range devices {
		stats := snap.PerDeviceStats[d]
		assert.Equal(t, 5, stats.Total)
		assert.Equal(t, 4, stats.Valid)
		assert.Equal(t, 1, stats.Expired)
	}

	// Reading the expired entries drops them from the totals.
	for _, d := range devices {
		_, ok := c.Get(d, "cmd-0")
		assert.False(t, ok)
	}

	snap = c.Snapshot()
	assert.Equal(t, 12, snap.TotalCachedCommands)
}

func TestDefaultTTLApplied(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultTTL, c.ttl)

	c = New(-time.Second)
	assert.Equal(t, DefaultTTL, c.ttl)
}
