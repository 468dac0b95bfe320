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
	"errors"
	"fmt"

	"github.com/nettestlab/devicebroker/pkg/models"
	"github.com/nettestlab/devicebroker/pkg/pool"
)

var (
	// ErrUnknownCommand is answered with a typed error response; the
	// offending connection stays open.
	ErrUnknownCommand = errors.New("unknown command")

	errSocketRequired    = errors.New("listen_socket is required")
	errInventoryRequired = errors.New("inventory_path is required")
	errAlreadyStarted    = errors.New("broker already started")
)

// ExecutionError wraps a session dying mid-command. The dispatcher tears
// the session down before surfacing it.
type ExecutionError struct {
	Hostname string
	Cmd      string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command execution failed on %s: %v", e.Hostname, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// errorResponse maps the error taxonomy onto a typed wire response.
// Device and connection failures become structured responses; they never
// crash the broker or touch unrelated connections.
func errorResponse(err error) models.ExecuteResponse {
	code := models.ErrCodeExecution

	var (
		connErr *pool.ConnectionError
		execErr *ExecutionError
	)

	switch {
	case errors.Is(err, pool.ErrUnknownDevice):
		code = models.ErrCodeUnknownDevice
	case errors.Is(err, ErrUnknownCommand):
		code = models.ErrCodeUnknownCommand
	case errors.As(err, &connErr):
		code = models.ErrCodeConnection
	case errors.As(err, &execErr):
		code = models.ErrCodeExecution
	}

	return models.ExecuteResponse{
		Status:  models.StatusError,
		Code:    code,
		Message: err.Error(),
	}
}

// protocolResponse is the typed response for malformed messages.
func protocolResponse(err error) models.ExecuteResponse {
	return models.ExecuteResponse{
		Status:  models.StatusError,
		Code:    models.ErrCodeProtocol,
		Message: err.Error(),
	}
}
