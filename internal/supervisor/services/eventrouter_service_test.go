// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockBusRouter is a test double for the BusRouter interface.
type mockBusRouter struct {
	runErr       error
	failBeforeUp bool
	running      chan struct{}
}

func newMockBusRouter() *mockBusRouter {
	return &mockBusRouter{running: make(chan struct{})}
}

func (m *mockBusRouter) Run(ctx context.Context) error {
	if m.failBeforeUp {
		return m.runErr
	}
	close(m.running)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	// The real router closes gracefully and returns nil on cancellation
	return nil
}

func (m *mockBusRouter) Running() <-chan struct{} {
	return m.running
}

func TestEventRouterService_Interface(t *testing.T) {
	var _ suture.Service = (*EventRouterService)(nil)
}

func TestEventRouterService_Serve(t *testing.T) {
	t.Run("returns context error on graceful shutdown", func(t *testing.T) {
		router := newMockBusRouter()
		svc := NewEventRouterService(router)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		select {
		case <-router.Running():
		case <-time.After(time.Second):
			t.Fatal("router did not come up")
		}

		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancellation")
		}
	})

	t.Run("reports startup failure", func(t *testing.T) {
		router := newMockBusRouter()
		router.failBeforeUp = true
		router.runErr = errors.New("subscribe failed")
		svc := NewEventRouterService(router)

		err := svc.Serve(context.Background())
		if !errors.Is(err, router.runErr) {
			t.Errorf("expected wrapped startup error, got %v", err)
		}
	})

	t.Run("treats early stop as a crash", func(t *testing.T) {
		router := newMockBusRouter()
		router.failBeforeUp = true
		svc := NewEventRouterService(router)

		err := svc.Serve(context.Background())
		if err == nil {
			t.Fatal("expected error for router stopping before running")
		}
		if !strings.Contains(err.Error(), "stopped before running") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("treats failure while running as a crash", func(t *testing.T) {
		router := newMockBusRouter()
		router.runErr = errors.New("handler panic storm")
		svc := NewEventRouterService(router)

		err := svc.Serve(context.Background())
		if !errors.Is(err, router.runErr) {
			t.Errorf("expected wrapped run error, got %v", err)
		}
	})
}

func TestEventRouterService_String(t *testing.T) {
	svc := NewEventRouterService(newMockBusRouter())

	if svc.String() != "event-router" {
		t.Errorf("expected 'event-router', got %q", svc.String())
	}
}
