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

// Package lifecycle runs long-lived services with signal-driven graceful
// shutdown.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nettestlab/devicebroker/pkg/logger"
)

// Service is a long-lived component with a non-blocking Start and a
// bounded Stop.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Run starts svc and blocks until SIGINT/SIGTERM or ctx cancellation,
// then stops it with shutdownTimeout as the bound. A Start failure is
// returned as-is; Stop is only called for a service that started.
func Run(ctx context.Context, svc Service, shutdownTimeout time.Duration, log logger.Logger) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(sigCtx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	<-sigCtx.Done()

	log.Info().Msg("Shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return svc.Stop(stopCtx)
}
