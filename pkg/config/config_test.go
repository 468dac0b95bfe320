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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettestlab/devicebroker/pkg/models"
)

type loggingSection struct {
	Level string `json:"level"`
	Debug bool   `json:"debug"`
}

type testConfig struct {
	ListenSocket   string          `json:"listen_socket"`
	MaxConnections int             `json:"max_connections"`
	CacheTTL       models.Duration `json:"cache_ttl"`
	Logging        *loggingSection `json:"logging"`

	validateErr error
}

func (c *testConfig) Validate() error {
	return c.validateErr
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.json")

	data := `{
		"listen_socket": "/tmp/broker.sock",
		"max_connections": 10,
		"cache_ttl": "30m",
		"logging": {"level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	var cfg testConfig

	loader := &FileConfigLoader{}
	require.NoError(t, loader.Load(context.Background(), path, &cfg))

	assert.Equal(t, "/tmp/broker.sock", cfg.ListenSocket)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL.Duration())
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestFileLoaderMissingFile(t *testing.T) {
	var cfg testConfig

	loader := &FileConfigLoader{}
	err := loader.Load(context.Background(), "/nonexistent/broker.json", &cfg)
	assert.Error(t, err)
}

func TestEnvLoader(t *testing.T) {
	t.Setenv("DEVICEBROKER_LISTEN_SOCKET", "/run/broker.sock")
	t.Setenv("DEVICEBROKER_MAX_CONNECTIONS", "25")
	t.Setenv("DEVICEBROKER_CACHE_TTL", "45m")
	t.Setenv("DEVICEBROKER_LOGGING_LEVEL", "warn")
	t.Setenv("DEVICEBROKER_LOGGING_DEBUG", "true")

	var cfg testConfig

	loader := NewEnvConfigLoader(nil, "DEVICEBROKER_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "/run/broker.sock", cfg.ListenSocket)
	assert.Equal(t, 25, cfg.MaxConnections)
	assert.Equal(t, 45*time.Minute, cfg.CacheTTL.Duration())
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Debug)
}

func TestEnvLoaderConfigJSON(t *testing.T) {
	t.Setenv("DEVICEBROKER_CONFIG_JSON", `{"listen_socket":"/run/broker.sock","max_connections":3}`)

	var cfg testConfig

	loader := NewEnvConfigLoader(nil, "DEVICEBROKER_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "/run/broker.sock", cfg.ListenSocket)
	assert.Equal(t, 3, cfg.MaxConnections)
}

func TestEnvLoaderRejectsNonPointer(t *testing.T) {
	loader := NewEnvConfigLoader(nil, "DEVICEBROKER_")

	err := loader.Load(context.Background(), "", testConfig{})
	assert.ErrorIs(t, err, ErrDstMustBeNonNilPointer)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen_socket":"/tmp/b.sock"}`), 0o600))

	wantErr := errors.New("bad config")
	cfg := testConfig{validateErr: wantErr}

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	assert.ErrorIs(t, err, wantErr)

	cfg.validateErr = nil
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))
}

func TestLoadAndValidateSourceSelection(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("DEVICEBROKER_LISTEN_SOCKET", "/run/env.sock")

	var cfg testConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "ignored", &cfg))
	assert.Equal(t, "/run/env.sock", cfg.ListenSocket)

	t.Setenv("CONFIG_SOURCE", "carrier-pigeon")

	err := NewConfig(nil).LoadAndValidate(context.Background(), "ignored", &cfg)
	assert.ErrorIs(t, err, errInvalidConfigSource)
}
