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

//go:generate mockgen -destination=mock_device.go -package=device github.com/nettestlab/devicebroker/pkg/device Session,Factory

// Package device defines the collaborator boundary between the broker and
// whatever speaks the device's command-line protocol over the wire. The
// broker treats sessions as opaque and never assumes the underlying
// protocol.
package device

import (
	"context"

	"github.com/nettestlab/devicebroker/pkg/models"
)

// Session is a live handle to a connected device.
type Session interface {
	// Run executes one command on the device and returns its output.
	Run(ctx context.Context, cmd string) (string, error)
	// IsHealthy is a cheap liveness probe.
	IsHealthy(ctx context.Context) bool
	// Close tears down the underlying transport.
	Close(ctx context.Context) error
}

// Factory establishes sessions from device descriptors. Supplied by the
// surrounding orchestration system.
type Factory interface {
	Dial(ctx context.Context, device models.DeviceDescriptor) (Session, error)
}
