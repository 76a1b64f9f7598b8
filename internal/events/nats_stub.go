// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

//go:build !nats

package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/config"
)

// NATSPublisher is a stub when NATS dependencies are not compiled in.
// Build with -tags=nats to enable JetStream publishing.
type NATSPublisher struct{}

var _ message.Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher returns an error when NATS support is not compiled in.
// Build with -tags=nats to enable JetStream publishing.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewNATSPublisher(_ config.EventsConfig, _ zerolog.Logger) (*NATSPublisher, error) {
	return nil, fmt.Errorf("NATS publisher not available: build with -tags=nats")
}

// Publish is a stub that returns an error.
func (p *NATSPublisher) Publish(_ string, _ ...*message.Message) error {
	return fmt.Errorf("NATS publisher not available: build with -tags=nats")
}

// Close is a no-op stub.
func (p *NATSPublisher) Close() error {
	return nil
}
