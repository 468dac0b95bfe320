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
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettestlab/devicebroker/pkg/models"
)

// fakeDevice is a line-oriented TCP listener that answers every received
// line with a canned response, standing in for console-server gear.
type fakeDevice struct {
	listener net.Listener
	response string

	mu    sync.Mutex
	conns []net.Conn
}

func newFakeDevice(t *testing.T, response string) *fakeDevice {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &fakeDevice{listener: l, response: response}

	go d.serve()

	t.Cleanup(d.close)

	return d
}

func (d *fakeDevice) serve() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}

		d.mu.Lock()
		d.conns = append(d.conns, conn)
		d.mu.Unlock()

		go func() {
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				if _, err := conn.Write([]byte(d.response)); err != nil {
					return
				}
			}
		}()
	}
}

func (d *fakeDevice) descriptor() models.DeviceDescriptor {
	host, portStr, _ := net.SplitHostPort(d.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	return models.DeviceDescriptor{Hostname: "sw1", Address: host, Port: port}
}

func (d *fakeDevice) dropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, conn := range d.conns {
		_ = conn.Close()
	}

	d.conns = nil
}

func (d *fakeDevice) close() {
	_ = d.listener.Close()
	d.dropConnections()
}

func TestTCPSessionRun(t *testing.T) {
	dev := newFakeDevice(t, "Cisco IOS Version 15.2\n")
	factory := NewTCPFactory(time.Second, 50*time.Millisecond)
	ctx := context.Background()

	session, err := factory.Dial(ctx, dev.descriptor())
	require.NoError(t, err)

	defer func() { _ = session.Close(ctx) }()

	out, err := session.Run(ctx, "show version")
	require.NoError(t, err)
	assert.Contains(t, out, "Cisco IOS Version 15.2")

	// The quiet-period collector must not leave residue that bleeds into
	// the next command's output.
	out, err = session.Run(ctx, "show version")
	require.NoError(t, err)
	assert.Equal(t, "Cisco IOS Version 15.2\n", out)
}

func TestTCPSessionHealth(t *testing.T) {
	dev := newFakeDevice(t, "ok\n")
	factory := NewTCPFactory(time.Second, 50*time.Millisecond)
	ctx := context.Background()

	session, err := factory.Dial(ctx, dev.descriptor())
	require.NoError(t, err)

	defer func() { _ = session.Close(ctx) }()

	assert.True(t, session.IsHealthy(ctx))

	dev.dropConnections()

	// The probe sees EOF once the peer's FIN arrives.
	require.Eventually(t, func() bool {
		return !session.IsHealthy(ctx)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTCPSessionCloseIdempotent(t *testing.T) {
	dev := newFakeDevice(t, "ok\n")
	factory := NewTCPFactory(time.Second, 50*time.Millisecond)
	ctx := context.Background()

	session, err := factory.Dial(ctx, dev.descriptor())
	require.NoError(t, err)

	require.NoError(t, session.Close(ctx))
	require.NoError(t, session.Close(ctx))

	assert.False(t, session.IsHealthy(ctx))

	_, err = session.Run(ctx, "show version")
	assert.ErrorIs(t, err, errSessionClosed)
}

func TestTCPFactoryDialFailure(t *testing.T) {
	dev := newFakeDevice(t, "ok\n")
	desc := dev.descriptor()
	dev.close()

	factory := NewTCPFactory(time.Second, 50*time.Millisecond)

	_, err := factory.Dial(context.Background(), desc)
	assert.Error(t, err)
}
