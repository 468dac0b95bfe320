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

// Package models contains shared data types used across broker packages.
package models

// DeviceDescriptor identifies one device in the test-bed inventory.
// Descriptors are loaded once at startup and never mutated afterwards.
type DeviceDescriptor struct {
	Hostname      string `json:"hostname"`
	Address       string `json:"address"`
	Port          int    `json:"port,omitempty"`
	CredentialRef string `json:"credential_ref,omitempty"`
	Platform      string `json:"platform,omitempty"`
}

// SessionState tracks the lifecycle of a device session held by the
// connection manager.
type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionConnected
	SessionUnhealthy
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionUnhealthy:
		return "unhealthy"
	case SessionClosed:
		return "closed"
	}

	return "unknown"
}
