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

// Package pool owns the live device sessions behind a bounded pool.
package pool

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nettestlab/devicebroker/pkg/device"
	"github.com/nettestlab/devicebroker/pkg/inventory"
	"github.com/nettestlab/devicebroker/pkg/logger"
	"github.com/nettestlab/devicebroker/pkg/models"
)

const maxConnectionsCap = 50

// DefaultMaxConnections derives the global session bound from the
// inventory size: twice the device count, capped at 50.
func DefaultMaxConnections(deviceCount int) int {
	bound := 2 * deviceCount
	if bound > maxConnectionsCap {
		bound = maxConnectionsCap
	}

	if bound < 1 {
		bound = 1
	}

	return bound
}

// Invalidator clears cached output for a device. Implemented by the
// command cache; the manager invokes it on every session teardown.
type Invalidator interface {
	Clear(hostname string)
}

type managedSession struct {
	hostname string
	session  device.Session
	state    models.SessionState
}

// Manager is the connection manager. It is the sole mutator of the
// session table and enforces two invariants: at most one live session per
// hostname, and at most maxConnections live sessions overall. Acquisition
// blocks (applies backpressure) rather than failing when the bound is
// saturated.
type Manager struct {
	factory        device.Factory
	inventory      *inventory.Inventory
	cache          Invalidator
	logger         logger.Logger
	maxConnections int
	sem            *semaphore.Weighted

	mu        sync.Mutex
	sessions  map[string]*managedSession
	hostLocks map[string]*sync.Mutex
}

// NewManager creates a connection manager bound to the given inventory
// and session factory. maxConnections <= 0 derives the default bound from
// the inventory size.
func NewManager(inv *inventory.Inventory, factory device.Factory, cache Invalidator, maxConnections int, log logger.Logger) *Manager {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections(inv.Count())
	}

	return &Manager{
		factory:        factory,
		inventory:      inv,
		cache:          cache,
		logger:         log,
		maxConnections: maxConnections,
		sem:            semaphore.NewWeighted(int64(maxConnections)),
		sessions:       make(map[string]*managedSession),
		hostLocks:      make(map[string]*sync.Mutex),
	}
}

// MaxConnections returns the global session bound.
func (m *Manager) MaxConnections() int {
	return m.maxConnections
}

// hostLock returns the per-hostname creation lock, creating it on first
// use. Locks are never removed; the inventory is finite and static.
func (m *Manager) hostLock(hostname string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.hostLocks[hostname]
	if !ok {
		l = &sync.Mutex{}
		m.hostLocks[hostname] = l
	}

	return l
}

// Acquire returns a healthy session for hostname, establishing one if
// needed. Concurrent acquires for the same hostname are serialized so
// exactly one session is created; acquires across hostnames only contend
// on the global bound. Blocks until a slot is free or ctx is canceled.
func (m *Manager) Acquire(ctx context.Context, hostname string) (device.Session, error) {
	desc, ok := m.inventory.Lookup(hostname)
	if !ok {
		return nil, ErrUnknownDevice
	}

	lock := m.hostLock(hostname)
	lock.Lock()
	defer lock.Unlock()

	if existing := m.lookup(hostname); existing != nil {
		if existing.session.IsHealthy(ctx) {
			return existing.session, nil
		}

		m.logger.Warn().Str("hostname", hostname).Msg("Session failed health check, tearing down")
		existing.state = models.SessionUnhealthy
		m.teardown(ctx, hostname)
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, &ConnectionError{Hostname: hostname, Err: err}
	}

	ms := &managedSession{hostname: hostname, state: models.SessionConnecting}

	session, err := m.factory.Dial(ctx, desc)
	if err != nil {
		m.sem.Release(1)

		m.logger.Error().Err(err).Str("hostname", hostname).Msg("Failed to establish session")

		return nil, &ConnectionError{Hostname: hostname, Err: err}
	}

	ms.session = session
	ms.state = models.SessionConnected

	m.mu.Lock()
	m.sessions[hostname] = ms
	m.mu.Unlock()

	m.logger.Info().Str("hostname", hostname).Str("address", desc.Address).Msg("Session established")

	return session, nil
}

// Release tears down and removes the session for hostname, frees its
// slot, and clears the device's cache entries. A hostname with no live
// session is a no-op.
func (m *Manager) Release(ctx context.Context, hostname string) {
	lock := m.hostLock(hostname)
	lock.Lock()
	defer lock.Unlock()

	m.teardown(ctx, hostname)
}

// teardown closes and removes hostname's session if present. Callers must
// hold the hostname's creation lock.
func (m *Manager) teardown(ctx context.Context, hostname string) {
	m.mu.Lock()
	ms, ok := m.sessions[hostname]
	if ok {
		delete(m.sessions, hostname)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if err := ms.session.Close(ctx); err != nil {
		m.logger.Warn().Err(err).Str("hostname", hostname).Msg("Error closing session")
	}

	ms.state = models.SessionClosed
	m.sem.Release(1)
	m.cache.Clear(hostname)

	m.logger.Info().Str("hostname", hostname).Msg("Session released")
}

// ShutdownAll tears down every live session. Safe to call more than
// once; the second call finds nothing to release.
func (m *Manager) ShutdownAll(ctx context.Context) {
	for _, hostname := range m.Connected() {
		m.Release(ctx, hostname)
	}
}

// Connected returns the sorted hostnames that currently hold a live
// session.
func (m *Manager) Connected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.sessions))
	for hostname := range m.sessions {
		out = append(out, hostname)
	}

	sort.Strings(out)

	return out
}

func (m *Manager) lookup(hostname string) *managedSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessions[hostname]
}
