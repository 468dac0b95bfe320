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

package broker

import (
	"context"

	"github.com/nettestlab/devicebroker/pkg/cache"
	"github.com/nettestlab/devicebroker/pkg/logger"
	"github.com/nettestlab/devicebroker/pkg/models"
	"github.com/nettestlab/devicebroker/pkg/pool"
)

const pongResult = "pong"

// Dispatcher implements the broker operations by composing the command
// cache and the connection manager.
type Dispatcher struct {
	cache   *cache.Cache
	manager *pool.Manager
	logger  logger.Logger
}

// NewDispatcher wires a dispatcher to its cache and connection manager.
func NewDispatcher(c *cache.Cache, m *pool.Manager, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		cache:   c,
		manager: m,
		logger:  log,
	}
}

// Ping answers the liveness probe.
func (*Dispatcher) Ping() string {
	return pongResult
}

// Connect ensures a live session for hostname exists, establishing one if
// needed.
func (d *Dispatcher) Connect(ctx context.Context, hostname string) error {
	_, err := d.manager.Acquire(ctx, hostname)
	return err
}

// Execute runs cmd on hostname, serving from the cache when fresh.
// Concurrent misses for the same (hostname, cmd) are not coalesced; both
// execute and the last write wins. A transport failure tears the session
// down and is surfaced to the caller; retrying is the caller's decision.
func (d *Dispatcher) Execute(ctx context.Context, hostname, cmd string) (string, error) {
	if output, ok := d.cache.Get(hostname, cmd); ok {
		d.logger.Debug().Str("hostname", hostname).Str("cmd", cmd).Msg("Cache hit")
		return output, nil
	}

	session, err := d.manager.Acquire(ctx, hostname)
	if err != nil {
		return "", err
	}

	output, err := session.Run(ctx, cmd)
	if err != nil {
		d.manager.Release(ctx, hostname)

		return "", &ExecutionError{Hostname: hostname, Cmd: cmd, Err: err}
	}

	d.cache.Set(hostname, cmd, output)

	return output, nil
}

// Disconnect tears down hostname's session if one exists.
func (d *Dispatcher) Disconnect(ctx context.Context, hostname string) {
	d.manager.Release(ctx, hostname)
}

// Status assembles the structured status response. Listener-level fields
// are supplied by the caller.
func (d *Dispatcher) Status(socketPath string, activeClients int, uptimeSeconds int64) models.BrokerStatus {
	return models.BrokerStatus{
		SocketPath:        socketPath,
		MaxConnections:    d.manager.MaxConnections(),
		ConnectedDevices:  d.manager.Connected(),
		ActiveClients:     activeClients,
		UptimeSeconds:     uptimeSeconds,
		CommandCacheStats: d.cache.Snapshot(),
	}
}
