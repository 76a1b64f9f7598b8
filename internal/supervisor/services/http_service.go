// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// defaultShutdownTimeout bounds graceful HTTP shutdown when the caller
// does not configure a limit.
const defaultShutdownTimeout = 10 * time.Second

// HTTPServer is the slice of *http.Server the service needs. Production
// passes the server built by the API router; tests substitute a mock.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService adapts http.Server's blocking ListenAndServe to a
// supervised, context-aware Serve. Cancellation triggers a graceful
// Shutdown; in-flight feed requests get the configured grace period to
// finish before the listener is torn down.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService wraps server for supervision. A non-positive
// shutdownTimeout falls back to 10 seconds.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements the suture.Service interface. A listener failure
// returns an error so the supervisor restarts the server; shutdown
// settles with ctx.Err() so it does not.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		// ErrServerClosed without a supervisor shutdown means something
		// external closed the server; treat it as a clean stop.
		return nil
	case <-ctx.Done():
	}

	return s.shutdown(serveErr, ctx.Err())
}

// shutdown drains active connections. The parent context is already
// canceled at this point, so the grace period runs on a fresh one.
func (s *HTTPServerService) shutdown(serveErr <-chan error, cause error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	<-serveErr
	return cause
}

// String returns the service name for logging.
func (s *HTTPServerService) String() string {
	return s.name
}
