// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package services

import (
	"context"
	"errors"
	"fmt"
)

// BusRouter interface matches the event router lifecycle.
//
// Satisfied by *events.Router:
//   - Run(ctx context.Context) error - blocks until cancellation,
//     closing the router and its handlers on the way out
//   - Running() <-chan struct{} - closes once all handlers are up
type BusRouter interface {
	Run(ctx context.Context) error
	Running() <-chan struct{}
}

// EventRouterService wraps the bus consumer as a supervised service.
//
// Run is started in a goroutine and the service waits on Running()
// before settling in, so a router that cannot subscribe surfaces as a
// startup failure rather than a silent no-op.
type EventRouterService struct {
	router BusRouter
	name   string
}

// NewEventRouterService creates a new event router service wrapper.
func NewEventRouterService(router BusRouter) *EventRouterService {
	return &EventRouterService{
		router: router,
		name:   "event-router",
	}
}

// Serve implements suture.Service.
//
// The underlying router returns nil after a graceful close, so the
// context error is reported explicitly on shutdown; any other return
// while the context is still live counts as a crash.
func (s *EventRouterService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.router.Run(ctx)
	}()

	select {
	case <-s.router.Running():
	case err := <-errCh:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("event router failed to start: %w", err)
		}
		return errors.New("event router stopped before running")
	case <-ctx.Done():
		<-errCh
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("event router failed: %w", err)
		}
		return errors.New("event router stopped unexpectedly")
	case <-ctx.Done():
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for logging.
func (s *EventRouterService) String() string {
	return s.name
}
