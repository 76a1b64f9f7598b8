// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/experiment"
	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/logging"
	"github.com/feedloom/feedloom/internal/metrics"
)

// Emitter queues events from the request path and publishes them from a
// worker goroutine. Producing never blocks: a full queue drops the event
// and increments a counter instead.
type Emitter struct {
	pub    message.Publisher
	queue  chan Event
	logger zerolog.Logger
}

var _ feed.EventSink = (*Emitter)(nil)

// NewEmitter creates an emitter over the given publisher. bufferSize is
// the queue depth.
func NewEmitter(pub message.Publisher, bufferSize int) *Emitter {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Emitter{
		pub:    pub,
		queue:  make(chan Event, bufferSize),
		logger: logging.WithComponent("events"),
	}
}

// FeedGenerated implements feed.EventSink.
func (e *Emitter) FeedGenerated(generated *feed.GeneratedFeed) {
	if generated == nil {
		return
	}
	e.Enqueue(NewFeedGeneratedEvent(generated))
}

// Observer returns the assignment observer feeding this emitter. The
// assigner calls it inline on the request path, so it only enqueues.
func (e *Emitter) Observer() experiment.Observer {
	return func(observation experiment.AssignmentEvent) {
		e.Enqueue(NewExperimentEvent(observation))
	}
}

// Enqueue adds an event without blocking. A full queue drops the event.
func (e *Emitter) Enqueue(ev Event) {
	select {
	case e.queue <- ev:
		metrics.EventsEmitted.WithLabelValues(ev.Topic()).Inc()
	default:
		metrics.EventsDropped.Inc()
		e.logger.Debug().Str("topic", ev.Topic()).Msg("event queue full, dropping event")
	}
}

// Run publishes queued events until ctx is canceled, then drains
// whatever is already queued before returning.
func (e *Emitter) Run(ctx context.Context) error {
	e.logger.Info().Int("buffer", cap(e.queue)).Msg("event emitter started")
	for {
		select {
		case <-ctx.Done():
			e.drain()
			e.logger.Info().Msg("event emitter stopped")
			return ctx.Err()
		case ev := <-e.queue:
			e.publish(ev)
		}
	}
}

func (e *Emitter) drain() {
	for {
		select {
		case ev := <-e.queue:
			e.publish(ev)
		default:
			return
		}
	}
}

func (e *Emitter) publish(ev Event) {
	data, err := Marshal(ev)
	if err != nil {
		metrics.EventPublishErrors.WithLabelValues(ev.Topic()).Inc()
		e.logger.Error().Err(err).Str("topic", ev.Topic()).Msg("marshal event")
		return
	}

	msg := message.NewMessage(ev.ID(), data)
	if err := e.pub.Publish(ev.Topic(), msg); err != nil {
		metrics.EventPublishErrors.WithLabelValues(ev.Topic()).Inc()
		e.logger.Error().Err(err).Str("topic", ev.Topic()).Msg("publish event")
	}
}
