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

package pool

import (
	"errors"
	"fmt"
)

// ErrUnknownDevice is returned when a hostname is not in the inventory.
var ErrUnknownDevice = errors.New("unknown device")

// ConnectionError wraps a session establishment failure (auth failure,
// timeout, refused). The broker surfaces it to the caller and never
// retries internally.
type ConnectionError struct {
	Hostname string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Hostname, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
