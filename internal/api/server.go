// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tcheronneau/homers/internal/logging"
)

// shutdownGrace is how long in-flight scrapes get to finish once the
// server is asked to stop.
const shutdownGrace = 30 * time.Second

// Server runs the HTTP listener as a suture service: Serve blocks until
// the context is cancelled, then drains in-flight requests.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the listener for the given address ("host:port").
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("listen", ln.Addr().String()).Msg("HTTP server starting")
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		logging.Info().Msg("HTTP server stopped")
		return ctx.Err()
	}
}

// String names the service in supervisor logs.
func (s *Server) String() string {
	return "http-server"
}
