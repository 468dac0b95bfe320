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

// Package inventory loads the static device inventory the broker serves.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nettestlab/devicebroker/pkg/config"
	"github.com/nettestlab/devicebroker/pkg/models"
)

var (
	errNoDevices         = errors.New("inventory contains no devices")
	errMissingHostname   = errors.New("inventory device missing hostname")
	errMissingAddress    = errors.New("inventory device missing address")
	errDuplicateHostname = errors.New("duplicate hostname in inventory")
)

// fileFormat is the on-disk shape of the inventory file.
type fileFormat struct {
	Devices []models.DeviceDescriptor `json:"devices"`
}

// Inventory is the read-only device list loaded once at broker startup.
type Inventory struct {
	devices map[string]models.DeviceDescriptor
	order   []string
}

// Load reads the inventory file at path. The returned Inventory is
// immutable and lives for the process lifetime.
func Load(ctx context.Context, loader config.ConfigLoader, path string) (*Inventory, error) {
	var raw fileFormat
	if err := loader.Load(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	return New(raw.Devices)
}

// New builds an Inventory from an in-memory descriptor list, validating
// required fields and hostname uniqueness.
func New(devices []models.DeviceDescriptor) (*Inventory, error) {
	if len(devices) == 0 {
		return nil, errNoDevices
	}

	inv := &Inventory{
		devices: make(map[string]models.DeviceDescriptor, len(devices)),
		order:   make([]string, 0, len(devices)),
	}

	for i := range devices {
		d := devices[i]

		if d.Hostname == "" {
			return nil, fmt.Errorf("%w (index %d)", errMissingHostname, i)
		}

		if d.Address == "" {
			return nil, fmt.Errorf("%w: %s", errMissingAddress, d.Hostname)
		}

		if _, exists := inv.devices[d.Hostname]; exists {
			return nil, fmt.Errorf("%w: %s", errDuplicateHostname, d.Hostname)
		}

		inv.devices[d.Hostname] = d
		inv.order = append(inv.order, d.Hostname)
	}

	sort.Strings(inv.order)

	return inv, nil
}

// Lookup returns the descriptor for hostname, if present.
func (i *Inventory) Lookup(hostname string) (models.DeviceDescriptor, bool) {
	d, ok := i.devices[hostname]
	return d, ok
}

// Hostnames returns the sorted hostnames in the inventory.
func (i *Inventory) Hostnames() []string {
	out := make([]string, len(i.order))
	copy(out, i.order)

	return out
}

// Count returns the number of devices in the inventory.
func (i *Inventory) Count() int {
	return len(i.devices)
}
