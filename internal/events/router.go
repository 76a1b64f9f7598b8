// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/experiment"
	"github.com/feedloom/feedloom/internal/metrics"
)

// RouterConfig holds settings for the event router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for in-flight handlers on close.
	CloseTimeout time.Duration

	// RetryMaxRetries bounds redelivery attempts for a failing handler.
	RetryMaxRetries int

	// RetryInitialInterval is the first retry backoff step.
	RetryInitialInterval time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
	}
}

// Router consumes the event stream and mirrors it into logs and
// metrics. It is the in-process reference consumer: anything a real
// downstream (analytics, notification fan-out) would subscribe to flows
// through the same topics.
type Router struct {
	router *message.Router
	logger zerolog.Logger
}

// NewRouter builds a router with mirror handlers for every feed type
// and assignment kind.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRouter(cfg RouterConfig, sub message.Subscriber, feedTypes []string, logger zerolog.Logger) (*Router, error) {
	wmLogger := NewWatermillLogger(logger)

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		Logger:          wmLogger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	r := &Router{
		router: wmRouter,
		logger: logger.With().Str("component", "event_router").Logger(),
	}

	for _, feedType := range feedTypes {
		topic := TopicFeedGenerated + "." + feedType
		wmRouter.AddConsumerHandler(
			"mirror-"+topic,
			topic,
			sub,
			r.handleFeedGenerated,
		)
	}

	kinds := []experiment.AssignmentEventKind{
		experiment.EventAssigned,
		experiment.EventExcluded,
		experiment.EventForced,
	}
	for _, kind := range kinds {
		topic := TopicExperiment + "." + string(kind)
		wmRouter.AddConsumerHandler(
			"mirror-"+topic,
			topic,
			sub,
			r.handleExperiment,
		)
	}

	return r, nil
}

// Run starts the router and blocks until the context is canceled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once all handlers are up.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

func (r *Router) handleFeedGenerated(msg *message.Message) error {
	ev, err := DecodeFeedGenerated(msg.Payload)
	if err != nil {
		// Malformed payloads cannot succeed on retry.
		r.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("undecodable feed event")
		return nil
	}

	metrics.EventsConsumed.WithLabelValues(ev.Topic()).Inc()

	r.logger.Info().
		Str("event_id", ev.EventID).
		Str("user_id", ev.UserID).
		Str("feed_type", ev.FeedType).
		Int("item_count", len(ev.ItemIDs)).
		Int64("duration_ms", ev.DurationMS).
		Bool("degraded", ev.Degraded).
		Str("experiment_id", ev.ExperimentID).
		Msg("feed generated")

	return nil
}

func (r *Router) handleExperiment(msg *message.Message) error {
	ev, err := DecodeExperiment(msg.Payload)
	if err != nil {
		r.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("undecodable experiment event")
		return nil
	}

	metrics.EventsConsumed.WithLabelValues(ev.Topic()).Inc()

	r.logger.Info().
		Str("event_id", ev.EventID).
		Str("kind", ev.Kind).
		Str("user_id", ev.UserID).
		Str("feed_type", ev.FeedType).
		Str("experiment_id", ev.ExperimentID).
		Str("variant_id", ev.VariantID).
		Bool("is_control", ev.IsControl).
		Msg("assignment decision")

	return nil
}
