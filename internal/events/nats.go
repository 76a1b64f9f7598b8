// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

//go:build nats

package events

import (
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/config"
)

// NATSPublisher publishes events to NATS JetStream with automatic
// reconnection. Message UUIDs double as Nats-Msg-Id headers so JetStream
// deduplicates redeliveries.
type NATSPublisher struct {
	publisher message.Publisher

	mu     sync.RWMutex
	closed bool
}

var _ message.Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to NATS and creates the JetStream publisher.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewNATSPublisher(cfg config.EventsConfig, logger zerolog.Logger) (*NATSPublisher, error) {
	wmLogger := NewWatermillLogger(logger)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				wmLogger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			wmLogger.Info("NATS reconnected", map[string]interface{}{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	return &NATSPublisher{publisher: pub}, nil
}

// Publish implements message.Publisher.
func (p *NATSPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("nats publisher is closed")
	}
	p.mu.RUnlock()

	for _, msg := range messages {
		if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
			msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
		}
	}

	return p.publisher.Publish(topic, messages...)
}

// Close shuts the publisher down. Safe to call more than once.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}
