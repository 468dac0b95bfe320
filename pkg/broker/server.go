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

// Package broker multiplexes many local client requests onto a bounded
// pool of device sessions over a unix-socket IPC protocol.
package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nettestlab/devicebroker/pkg/cache"
	"github.com/nettestlab/devicebroker/pkg/device"
	"github.com/nettestlab/devicebroker/pkg/inventory"
	"github.com/nettestlab/devicebroker/pkg/logger"
	"github.com/nettestlab/devicebroker/pkg/models"
	"github.com/nettestlab/devicebroker/pkg/pool"
)

var (
	errHostnameRequired = errors.New("hostname is required")
	errCmdRequired      = errors.New("cmd is required")
)

// Server is the broker service: the unix-socket listener, the dispatcher
// behind it, and the shared state both compose. All mutable state hangs
// off this struct so multiple brokers can coexist in one test process.
type Server struct {
	config     Config
	cache      *cache.Cache
	manager    *pool.Manager
	dispatcher *Dispatcher
	logger     logger.Logger

	mu        sync.Mutex
	listener  net.Listener
	clients   map[string]net.Conn
	started   bool
	stopping  bool
	startTime time.Time

	acceptWg sync.WaitGroup
	connWg   sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// NewServer builds the broker component graph: cache, connection
// manager, and dispatcher over the given inventory and session factory.
func NewServer(cfg *Config, inv *inventory.Inventory, factory device.Factory, log logger.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	commandCache := cache.New(cfg.CacheTTL.Duration())
	manager := pool.NewManager(inv, factory, commandCache, cfg.MaxConnections, log.WithComponent("pool"))

	s := &Server{
		config:     *cfg,
		cache:      commandCache,
		manager:    manager,
		dispatcher: NewDispatcher(commandCache, manager, log.WithComponent("dispatcher")),
		logger:     log,
		clients:    make(map[string]net.Conn),
	}

	return s, nil
}

// SocketPath returns the filesystem endpoint clients connect to.
func (s *Server) SocketPath() string {
	return s.config.ListenSocket
}

// Start binds the unix socket and begins accepting client connections.
// It does not block; use Stop to shut the broker down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errAlreadyStarted
	}

	// Recover from a previous unclean exit that left the socket behind.
	if err := os.Remove(s.config.ListenSocket); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.mu.Unlock()
		return fmt.Errorf("failed to remove stale socket %s: %w", s.config.ListenSocket, err)
	}

	listener, err := net.Listen("unix", s.config.ListenSocket)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to bind %s: %w", s.config.ListenSocket, err)
	}

	s.listener = listener
	s.started = true
	s.startTime = time.Now()
	s.mu.Unlock()

	s.logger.Info().
		Str("socket", s.config.ListenSocket).
		Int("max_connections", s.manager.MaxConnections()).
		Msg("Broker listening")

	s.acceptWg.Add(1)

	go s.acceptLoop(ctx)

	return nil
}

// Stop drains the broker: stop accepting, close tracked client
// connections, tear down every device session, close the listener, and
// unlink the socket. Idempotent; the second call is a no-op. Bounded by
// the caller's ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		listener := s.listener

		conns := make([]net.Conn, 0, len(s.clients))
		for _, conn := range s.clients {
			conns = append(conns, conn)
		}
		s.mu.Unlock()

		if listener != nil {
			_ = listener.Close()
		}

		for _, conn := range conns {
			_ = conn.Close()
		}

		done := make(chan struct{})

		go func() {
			s.acceptWg.Wait()
			s.connWg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn().Msg("Timed out waiting for connection handlers to drain")
			s.stopErr = ctx.Err()
		}

		s.manager.ShutdownAll(ctx)

		_ = os.Remove(s.config.ListenSocket)

		s.logger.Info().Msg("Broker stopped")
	})

	return s.stopErr
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopping
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.acceptWg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isStopping() || errors.Is(err, net.ErrClosed) {
				return
			}

			s.logger.Error().Err(err).Msg("Accept failed")

			continue
		}

		clientID := uuid.New().String()

		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			_ = conn.Close()

			return
		}
		s.clients[clientID] = conn
		active := len(s.clients)
		s.mu.Unlock()

		s.logger.Debug().Str("client_id", clientID).Int("active_clients", active).Msg("Client connected")

		s.connWg.Add(1)

		go s.handleConnection(ctx, clientID, conn)
	}
}

func (s *Server) untrackClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clients, clientID)
}

func (s *Server) activeClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// handleConnection serves one client. Requests on a connection are
// processed sequentially so responses come back in request order; an I/O
// failure closes only this connection.
func (s *Server) handleConnection(ctx context.Context, clientID string, conn net.Conn) {
	defer func() {
		s.untrackClient(clientID)
		_ = conn.Close()
		s.connWg.Done()

		s.logger.Debug().Str("client_id", clientID).Msg("Client disconnected")
	}()

	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			// Framing violations get a typed answer and the connection
			// lives on; transport errors end the session.
			if errors.Is(err, errEmptyFrame) || errors.Is(err, errFrameTooLarge) {
				if werr := WriteFrame(conn, protocolResponse(err)); werr != nil {
					return
				}

				continue
			}

			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug().Err(err).Str("client_id", clientID).Msg("Read failed")
			}

			return
		}

		req, kind, err := DecodeRequest(payload)
		if err != nil {
			if werr := WriteFrame(conn, protocolResponse(err)); werr != nil {
				return
			}

			continue
		}

		response := s.dispatch(ctx, req, kind)

		if err := WriteFrame(conn, response); err != nil {
			// The client may have gone away mid-request; the operation
			// already ran to completion, its result is simply discarded.
			s.logger.Debug().Err(err).Str("client_id", clientID).Msg("Write failed")

			return
		}
	}
}

// dispatch routes one decoded request. The switch is exhaustive over
// RequestKind so adding a wire command without handling it here fails
// review, not runtime.
func (s *Server) dispatch(ctx context.Context, req *models.Request, kind models.RequestKind) interface{} {
	switch kind {
	case models.RequestPing:
		return s.dispatcher.Ping()

	case models.RequestConnect:
		if req.Hostname == "" {
			return protocolResponse(errHostnameRequired)
		}

		if err := s.dispatcher.Connect(ctx, req.Hostname); err != nil {
			s.logger.Warn().Err(err).Str("hostname", req.Hostname).Msg("Connect failed")
			return false
		}

		return true

	case models.RequestExecute:
		if req.Hostname == "" {
			return protocolResponse(errHostnameRequired)
		}

		if req.Cmd == "" {
			return protocolResponse(errCmdRequired)
		}

		output, err := s.dispatcher.Execute(ctx, req.Hostname, req.Cmd)
		if err != nil {
			return errorResponse(err)
		}

		return models.ExecuteResponse{Status: models.StatusSuccess, Result: output}

	case models.RequestDisconnect:
		if req.Hostname == "" {
			return protocolResponse(errHostnameRequired)
		}

		s.dispatcher.Disconnect(ctx, req.Hostname)

		return true

	case models.RequestStatus:
		uptime := int64(time.Since(s.startTime).Seconds())
		return s.dispatcher.Status(s.config.ListenSocket, s.activeClients(), uptime)

	case models.RequestUnknown:
	}

	return errorResponse(fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command))
}
