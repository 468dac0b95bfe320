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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/nettestlab/devicebroker/pkg/broker"
	"github.com/nettestlab/devicebroker/pkg/config"
	"github.com/nettestlab/devicebroker/pkg/device"
	"github.com/nettestlab/devicebroker/pkg/inventory"
	"github.com/nettestlab/devicebroker/pkg/lifecycle"
	"github.com/nettestlab/devicebroker/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	// A .env alongside the binary is a convenience for lab setups; its
	// absence is not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", "/etc/devicebroker/broker.json", "Path to broker config file")
	dialTimeout := flag.Duration("dial-timeout", 0, "Device dial timeout (0 for default)")
	readTimeout := flag.Duration("read-timeout", 0, "Device read timeout (0 for default)")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg broker.Config
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	brokerLogger, err := lifecycle.CreateComponentLogger("broker", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	inv, err := inventory.Load(ctx, &config.FileConfigLoader{}, cfg.InventoryPath)
	if err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}

	brokerLogger.Info().
		Int("devices", inv.Count()).
		Str("inventory", cfg.InventoryPath).
		Msg("Inventory loaded")

	factory := device.NewTCPFactory(*dialTimeout, *readTimeout)

	server, err := broker.NewServer(&cfg, inv, factory, brokerLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return lifecycle.Run(ctx, server, time.Duration(cfg.ShutdownTimeout), brokerLogger)
}
