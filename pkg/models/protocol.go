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

// RequestKind is the closed set of broker operations carried on the wire.
// Decoding maps the textual command tag onto this enum so dispatch can
// switch over it exhaustively instead of comparing strings everywhere.
type RequestKind int32

const (
	RequestUnknown RequestKind = iota
	RequestPing
	RequestConnect
	RequestExecute
	RequestDisconnect
	RequestStatus
)

const (
	commandPing       = "ping"
	commandConnect    = "connect"
	commandExecute    = "execute"
	commandDisconnect = "disconnect"
	commandStatus     = "status"
)

// KindOf maps a wire command tag to its RequestKind. Unrecognized tags map
// to RequestUnknown; the dispatcher answers those with a typed error.
func KindOf(command string) RequestKind {
	switch command {
	case commandPing:
		return RequestPing
	case commandConnect:
		return RequestConnect
	case commandExecute:
		return RequestExecute
	case commandDisconnect:
		return RequestDisconnect
	case commandStatus:
		return RequestStatus
	}

	return RequestUnknown
}

func (k RequestKind) String() string {
	switch k {
	case RequestPing:
		return commandPing
	case RequestConnect:
		return commandConnect
	case RequestExecute:
		return commandExecute
	case RequestDisconnect:
		return commandDisconnect
	case RequestStatus:
		return commandStatus
	case RequestUnknown:
	}

	return "unknown"
}

// Request is the decoded wire payload for one broker operation.
type Request struct {
	Command  string `json:"command"`
	Hostname string `json:"hostname,omitempty"`
	Cmd      string `json:"cmd,omitempty"`
}

const (
	// StatusSuccess marks a successful execute response.
	StatusSuccess = "success"
	// StatusError marks any typed error response.
	StatusError = "error"
)

// Error codes carried in typed error responses.
const (
	ErrCodeProtocol       = "protocol_error"
	ErrCodeUnknownCommand = "unknown_command"
	ErrCodeUnknownDevice  = "unknown_device"
	ErrCodeConnection     = "connection_error"
	ErrCodeExecution      = "execution_error"
	ErrCodeShuttingDown   = "shutting_down"
)

// ExecuteResponse is the wire shape for execute results and for every
// typed error response.
type ExecuteResponse struct {
	Status  string `json:"status"`
	Result  string `json:"result,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
