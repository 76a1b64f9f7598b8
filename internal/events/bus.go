// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
)

// Bus is the in-process event transport. Delivery is at-most-once and
// per-subscriber; a topic with no subscribers discards its messages,
// which is the right behavior for telemetry.
type Bus struct {
	ch *gochannel.GoChannel
}

// NewBus creates an in-process bus. buffer is the per-subscriber channel
// depth.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(buffer int64, logger zerolog.Logger) *Bus {
	return &Bus{
		ch: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: buffer},
			NewWatermillLogger(logger),
		),
	}
}

// Publisher returns the publish side for the emitter.
func (b *Bus) Publisher() message.Publisher {
	return b.ch
}

// Subscriber returns the subscribe side for router handlers.
func (b *Bus) Subscriber() message.Subscriber {
	return b.ch
}

// Subscribe returns a channel of messages for one topic. Subscribers
// must Ack or Nack every message.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.ch.Subscribe(ctx, topic)
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.ch.Close()
}

// watermillLogger adapts zerolog to the watermill.LoggerAdapter
// interface.
type watermillLogger struct {
	logger zerolog.Logger
}

var _ watermill.LoggerAdapter = (*watermillLogger)(nil)

// NewWatermillLogger returns a watermill logger backed by zerolog.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWatermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{
		logger: logger.With().Str("component", "watermill").Logger(),
	}
}

// Error implements watermill.LoggerAdapter.
func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	withFields(w.logger.Error().Err(err), fields).Msg(msg)
}

// Info implements watermill.LoggerAdapter. Watermill logs routine
// delivery at info; map it to debug to keep request logs readable.
func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	withFields(w.logger.Debug(), fields).Msg(msg)
}

// Debug implements watermill.LoggerAdapter.
func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	withFields(w.logger.Debug(), fields).Msg(msg)
}

// Trace implements watermill.LoggerAdapter.
func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	withFields(w.logger.Trace(), fields).Msg(msg)
}

// With implements watermill.LoggerAdapter.
func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	logger := w.logger
	for k, v := range fields {
		logger = logger.With().Interface(k, v).Logger()
	}
	return &watermillLogger{logger: logger}
}

func withFields(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
