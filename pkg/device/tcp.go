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

package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nettestlab/devicebroker/pkg/models"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultReadTimeout = 5 * time.Second
	defaultDevicePort  = 23

	healthProbeTimeout = 10 * time.Millisecond
	readChunkSize      = 4096
)

var errSessionClosed = errors.New("session closed")

// NewTCPFactory returns a Factory speaking a raw line-oriented TCP
// transport: one command per line out, output collected until the device
// goes quiet. Lab gear fronted by console servers works this way; richer
// protocol drivers implement Factory themselves.
func NewTCPFactory(dialTimeout, readTimeout time.Duration) Factory {
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	return &tcpFactory{dialTimeout: dialTimeout, readTimeout: readTimeout}
}

type tcpFactory struct {
	dialTimeout time.Duration
	readTimeout time.Duration
}

func (f *tcpFactory) Dial(ctx context.Context, desc models.DeviceDescriptor) (Session, error) {
	port := desc.Port
	if port == 0 {
		port = defaultDevicePort
	}

	addr := net.JoinHostPort(desc.Address, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: f.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return &tcpSession{conn: conn, readTimeout: f.readTimeout}, nil
}

type tcpSession struct {
	mu          sync.Mutex
	conn        net.Conn
	readTimeout time.Duration
	closed      bool
}

func (s *tcpSession) Run(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", errSessionClosed
	}

	writeDeadline := time.Now().Add(s.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(writeDeadline) {
		writeDeadline = d
	}

	if err := s.conn.SetWriteDeadline(writeDeadline); err != nil {
		return "", err
	}

	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	// Collect output until the device goes quiet for readTimeout.
	var out bytes.Buffer

	buf := make([]byte, readChunkSize)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return "", err
		}

		n, err := s.conn.Read(buf)
		out.Write(buf[:n])

		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return out.String(), nil
		}

		return "", fmt.Errorf("failed to read output: %w", err)
	}
}

// IsHealthy probes the connection with a near-immediate read. A timeout
// means the peer is still there; EOF or a transport error means it is
// not. Stray banner bytes the probe happens to consume are discarded.
func (s *tcpSession) IsHealthy(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(healthProbeTimeout)); err != nil {
		return false
	}

	var probe [1]byte

	_, err := s.conn.Read(probe[:])
	if err == nil {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func (s *tcpSession) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.conn.Close()
}
