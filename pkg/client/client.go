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

// Package client implements the Go client for the broker's IPC protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/nettestlab/devicebroker/pkg/broker"
	"github.com/nettestlab/devicebroker/pkg/models"
)

// SocketEnvVar is how the surrounding orchestration system communicates
// the broker endpoint to its test processes.
const SocketEnvVar = "DEVICEBROKER_SOCKET"

var (
	errNoSocketPath   = errors.New("no socket path: set " + SocketEnvVar + " or pass one explicitly")
	errUnexpectedPong = errors.New("unexpected ping response")
)

// RemoteError is a typed error response from the broker.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DefaultSocketPath returns the broker endpoint from the environment.
func DefaultSocketPath() string {
	return os.Getenv(SocketEnvVar)
}

// Client is a connection to the broker. Calls are serialized: one
// request/response in flight at a time, matching the broker's
// per-connection ordering guarantee.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the broker at socketPath. An empty socketPath falls
// back to the DEVICEBROKER_SOCKET environment variable.
func Dial(socketPath string) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath()
	}

	if socketPath == "" {
		return nil, errNoSocketPath
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker at %s: %w", socketPath, err)
	}

	return &Client{conn: conn}, nil
}

// Close closes the connection to the broker.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request and decodes the raw response payload.
func (c *Client) roundTrip(ctx context.Context, req *models.Request) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}

	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if err := broker.WriteFrame(c.conn, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	payload, err := broker.ReadFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return payload, nil
}

// asRemoteError converts a typed error response payload, if the payload
// is one, into a *RemoteError.
func asRemoteError(payload []byte) error {
	var resp models.ExecuteResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil
	}

	if resp.Status != models.StatusError {
		return nil
	}

	return &RemoteError{Code: resp.Code, Message: resp.Message}
}

// Ping checks broker liveness.
func (c *Client) Ping(ctx context.Context) error {
	payload, err := c.roundTrip(ctx, &models.Request{Command: "ping"})
	if err != nil {
		return err
	}

	var result string
	if err := json.Unmarshal(payload, &result); err != nil || result != "pong" {
		return errUnexpectedPong
	}

	return nil
}

// Connect asks the broker to establish a session for hostname.
func (c *Client) Connect(ctx context.Context, hostname string) (bool, error) {
	payload, err := c.roundTrip(ctx, &models.Request{Command: "connect", Hostname: hostname})
	if err != nil {
		return false, err
	}

	var ok bool
	if err := json.Unmarshal(payload, &ok); err != nil {
		if remote := asRemoteError(payload); remote != nil {
			return false, remote
		}

		return false, fmt.Errorf("unexpected connect response: %w", err)
	}

	return ok, nil
}

// Execute runs cmd on hostname through the broker, which may serve the
// result from its cache.
func (c *Client) Execute(ctx context.Context, hostname, cmd string) (string, error) {
	payload, err := c.roundTrip(ctx, &models.Request{Command: "execute", Hostname: hostname, Cmd: cmd})
	if err != nil {
		return "", err
	}

	var resp models.ExecuteResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", fmt.Errorf("unexpected execute response: %w", err)
	}

	if resp.Status != models.StatusSuccess {
		return "", &RemoteError{Code: resp.Code, Message: resp.Message}
	}

	return resp.Result, nil
}

// Disconnect tears down hostname's session on the broker.
func (c *Client) Disconnect(ctx context.Context, hostname string) (bool, error) {
	payload, err := c.roundTrip(ctx, &models.Request{Command: "disconnect", Hostname: hostname})
	if err != nil {
		return false, err
	}

	var ok bool
	if err := json.Unmarshal(payload, &ok); err != nil {
		if remote := asRemoteError(payload); remote != nil {
			return false, remote
		}

		return false, fmt.Errorf("unexpected disconnect response: %w", err)
	}

	return ok, nil
}

// Status fetches the broker's structured status.
func (c *Client) Status(ctx context.Context) (*models.BrokerStatus, error) {
	payload, err := c.roundTrip(ctx, &models.Request{Command: "status"})
	if err != nil {
		return nil, err
	}

	var status models.BrokerStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		if remote := asRemoteError(payload); remote != nil {
			return nil, remote
		}

		return nil, fmt.Errorf("unexpected status response: %w", err)
	}

	return &status, nil
}
