// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/tomtom215/meshguard/internal/logging"
)

// Server runs the admin API as a supervised service.
type Server struct {
	cfg     Config
	handler http.Handler

	mu   sync.Mutex
	addr net.Addr
}

// NewServer wraps handler in an http.Server built from cfg.
func NewServer(cfg Config, handler http.Handler) *Server {
	return &Server{cfg: cfg, handler: handler}
}

// Serve listens until ctx is cancelled, then drains in-flight requests
// for at most ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.cfg.Addr(), err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", ln.Addr().String()).Msg("Admin API listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Admin API shutdown incomplete")
		_ = srv.Close()
	}
	<-errCh
	logging.Info().Msg("Admin API stopped")
	return ctx.Err()
}

// Addr returns the bound address once Serve is listening, else nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// String names the service in supervisor logs.
func (s *Server) String() string {
	return "api-server"
}
