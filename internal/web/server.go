// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

// Package web exposes the authentication operations over HTTP with JSON
// request and response bodies. The session token travels in a cookie; every
// handler builds a per-request CookieCarrier and hands it to the auth layer.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/fleetpass/fleetpass/internal/auth"
	"github.com/fleetpass/fleetpass/internal/observability"
)

// Server serves the FleetPass authentication API.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	handler    *Handler
	running    atomic.Bool
}

// NewServer creates the API server. metrics may be nil; handlers then skip
// counter updates.
func NewServer(addr string, authSvc *auth.Service, accounts *auth.AccountService, metrics *observability.Metrics) (*Server, error) {
	handler, err := NewHandler(authSvc, accounts, metrics)
	if err != nil {
		return nil, err
	}
	return &Server{addr: addr, handler: handler}, nil
}

// Start begins serving the API. It returns an error channel that receives any
// error from the HTTP server after startup; the channel is closed on graceful
// shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
