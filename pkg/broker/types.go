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
	"time"

	"github.com/nettestlab/devicebroker/pkg/cache"
	"github.com/nettestlab/devicebroker/pkg/logger"
	"github.com/nettestlab/devicebroker/pkg/models"
)

const defaultShutdownTimeout = 10 * time.Second

// Config is the broker service configuration.
type Config struct {
	ListenSocket    string          `json:"listen_socket"`
	InventoryPath   string          `json:"inventory_path"`
	MaxConnections  int             `json:"max_connections,omitempty"`
	CacheTTL        models.Duration `json:"cache_ttl,omitempty"`
	ShutdownTimeout models.Duration `json:"shutdown_timeout,omitempty"`
	Logging         *logger.Config  `json:"logging,omitempty"`
}

// Validate implements config.Validator. It also applies defaults for the
// optional fields; max_connections stays 0 here and is derived from the
// inventory size once that is known.
func (c *Config) Validate() error {
	if c.ListenSocket == "" {
		return errSocketRequired
	}

	if c.InventoryPath == "" {
		return errInventoryRequired
	}

	if c.CacheTTL <= 0 {
		c.CacheTTL = models.Duration(cache.DefaultTTL)
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = models.Duration(defaultShutdownTimeout)
	}

	return nil
}
