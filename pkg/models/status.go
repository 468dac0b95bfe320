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

package models

// CacheStats are the diagnostic counters for one device's cached commands.
// Expired-but-unread entries still count toward Total until the next read
// touches them.
type CacheStats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// CommandCacheStats aggregates cache state across all devices for status
// reporting.
type CommandCacheStats struct {
	DevicesWithCache    []string              `json:"devices_with_cache"`
	TotalCachedCommands int                   `json:"total_cached_commands"`
	PerDeviceStats      map[string]CacheStats `json:"per_device_stats"`
}

// BrokerStatus is the response payload for the status operation.
type BrokerStatus struct {
	SocketPath        string            `json:"socket_path"`
	MaxConnections    int               `json:"max_connections"`
	ConnectedDevices  []string          `json:"connected_devices"`
	ActiveClients     int               `json:"active_clients"`
	UptimeSeconds     int64             `json:"uptime_seconds"`
	CommandCacheStats CommandCacheStats `json:"command_cache_stats"`
}
