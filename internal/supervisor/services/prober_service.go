// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FallbackProber checks whether a degraded upstream has recovered.
// Satisfied by *engine.Engine, whose Probe is a no-op unless the
// fallback controller is degraded.
type FallbackProber interface {
	Probe(ctx context.Context) error
}

// ProberServiceConfig holds configuration for the prober service.
type ProberServiceConfig struct {
	// ProbeInterval is how often the supplier is probed.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe attempt.
	ProbeTimeout time.Duration
}

// ProberService drives recovery from degraded mode. While the fallback
// controller is degraded, each tick pings the candidate supplier; probe
// successes move the controller toward serving live feeds again.
type ProberService struct {
	prober FallbackProber
	config ProberServiceConfig
	logger zerolog.Logger
	name   string
}

// NewProberService creates a new fallback prober service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewProberService(prober FallbackProber, cfg ProberServiceConfig, logger zerolog.Logger) *ProberService {
	return &ProberService{
		prober: prober,
		config: cfg,
		logger: logger.With().Str("service", "prober").Logger(),
		name:   "fallback-prober",
	}
}

// Serve implements the suture.Service interface.
// Failed probes are expected while the upstream is down, so they are
// logged at debug level and never crash the service.
func (s *ProberService) Serve(ctx context.Context) error {
	if s.config.ProbeInterval <= 0 {
		s.config.ProbeInterval = 5 * time.Second
	}
	if s.config.ProbeTimeout <= 0 {
		s.config.ProbeTimeout = 2 * time.Second
	}

	s.logger.Info().
		Dur("probe_interval", s.config.ProbeInterval).
		Msg("prober service starting")

	ticker := time.NewTicker(s.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("prober service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.probe(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("probe cycle failed")
			}
		}
	}
}

// probe performs one probe attempt with a bounded timeout.
func (s *ProberService) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	return s.prober.Probe(probeCtx)
}

// String returns the service name for logging.
func (s *ProberService) String() string {
	return s.name
}
