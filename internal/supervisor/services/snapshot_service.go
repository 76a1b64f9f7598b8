// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/experiment"
)

// SnapshotRefresher pulls experiment definitions from a store into the
// active snapshot. Satisfied by *experiment.Assigner.
type SnapshotRefresher interface {
	Refresh(ctx context.Context, store experiment.Store) error
}

// SnapshotServiceConfig holds configuration for the snapshot service.
type SnapshotServiceConfig struct {
	// RefreshOnStartup triggers a refresh when the service starts.
	RefreshOnStartup bool

	// RefreshInterval is how often definitions are re-read from the store.
	RefreshInterval time.Duration
}

// SnapshotService keeps the experiment definition snapshot current.
// It periodically pulls definitions from the store and swaps them into
// the assigner. A failed pull keeps the last good snapshot, so running
// assignments never see a half-loaded state.
type SnapshotService struct {
	refresher SnapshotRefresher
	store     experiment.Store
	config    SnapshotServiceConfig
	logger    zerolog.Logger
	name      string
}

// NewSnapshotService creates a new snapshot refresher service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotService(refresher SnapshotRefresher, store experiment.Store, cfg SnapshotServiceConfig, logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		refresher: refresher,
		store:     store,
		config:    cfg,
		logger:    logger.With().Str("service", "snapshot").Logger(),
		name:      "experiment-snapshot",
	}
}

// Serve implements the suture.Service interface.
// It manages the periodic refresh loop for experiment definitions.
func (s *SnapshotService) Serve(ctx context.Context) error {
	if s.config.RefreshInterval <= 0 {
		s.config.RefreshInterval = 30 * time.Second
	}

	s.logger.Info().
		Bool("refresh_on_startup", s.config.RefreshOnStartup).
		Dur("refresh_interval", s.config.RefreshInterval).
		Msg("snapshot service starting")

	if s.config.RefreshOnStartup {
		if err := s.refresh(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("initial snapshot refresh failed (will retry on schedule)")
		}
	}

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("snapshot service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled snapshot refresh failed")
			}
		}
	}
}

// refresh performs one refresh cycle with a bounded timeout.
func (s *SnapshotService) refresh(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.refresher.Refresh(refreshCtx, s.store)
}

// String returns the service name for logging.
func (s *SnapshotService) String() string {
	return s.name
}
