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

// EventPump interface matches the emitter's drain loop.
//
// Satisfied by *events.Emitter:
//   - Run(ctx context.Context) error - pumps queued events to the
//     publisher, drains the queue on cancellation, returns ctx.Err()
type EventPump interface {
	Run(ctx context.Context) error
}

// EmitterService wraps the event emitter pump as a supervised service.
//
// The emitter owns a bounded queue; producers never block on it. This
// wrapper keeps the single pump goroutine alive under supervision so a
// crashed pump is restarted instead of silently dropping every event
// from then on.
type EmitterService struct {
	pump EventPump
	name string
}

// NewEmitterService creates a new emitter service wrapper.
func NewEmitterService(pump EventPump) *EmitterService {
	return &EmitterService{
		pump: pump,
		name: "event-emitter",
	}
}

// Serve implements suture.Service. It blocks inside the pump loop until
// the context is canceled. The pump drains remaining queued events before
// returning, so shutdown loses nothing that was already accepted.
func (s *EmitterService) Serve(ctx context.Context) error {
	err := s.pump.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("event emitter failed: %w", err)
}

// String implements fmt.Stringer for logging.
func (s *EmitterService) String() string {
	return s.name
}
