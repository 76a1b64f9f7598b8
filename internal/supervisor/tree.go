// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Defaults mirror suture's own production values.
const (
	defaultFailureThreshold = 5.0
	defaultFailureDecay     = 30.0
	defaultFailureBackoff   = 15 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
)

// TreeConfig tunes restart and shutdown behavior for every supervisor in
// the tree. Zero values fall back to the defaults above.
type TreeConfig struct {
	// FailureThreshold is how many failures accumulate before the
	// supervisor pauses restarts and enters backoff.
	FailureThreshold float64

	// FailureDecay is the half-life, in seconds, of the failure counter.
	FailureDecay float64

	// FailureBackoff is how long restarts stay paused once the
	// threshold trips.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a stopping service may take
	// before it is abandoned and reported as unstopped.
	ShutdownTimeout time.Duration
}

// withDefaults fills zero fields with the package defaults.
func (c TreeConfig) withDefaults() TreeConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = defaultFailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = defaultFailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// DefaultTreeConfig returns the fully populated default configuration.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{}.withDefaults()
}

// SupervisorTree arranges the long-running services into three supervised
// layers under one root:
//
//	feedloom
//	├── ranking-layer    snapshot refresher, fallback prober
//	├── messaging-layer  event pump, event router
//	└── api-layer        HTTP server
//
// Layers fail independently. A crash looping in the messaging layer backs
// off on its own while the api layer keeps serving feeds.
type SupervisorTree struct {
	root      *suture.Supervisor
	ranking   *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
	config    TreeConfig
}

// NewSupervisorTree builds the three-layer tree. Supervision events are
// logged through the given slog logger, which the caller typically bridges
// from zerolog.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	config = config.withDefaults()

	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Only the root carries the event hook. Branches inherit it when
	// added, so wiring it per layer would double-log every event.
	// sutureslog exposes the hook through Handler.MustHook, which has a
	// pointer receiver.
	rootSpec := spec
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &SupervisorTree{
		root:      suture.New("feedloom", rootSpec),
		ranking:   suture.New("ranking-layer", spec),
		messaging: suture.New("messaging-layer", spec),
		api:       suture.New("api-layer", spec),
		config:    config,
	}
	t.root.Add(t.ranking)
	t.root.Add(t.messaging)
	t.root.Add(t.api)

	return t, nil
}

// AddRankingService registers svc under the ranking layer. The snapshot
// refresher and the fallback prober live here.
func (t *SupervisorTree) AddRankingService(svc suture.Service) suture.ServiceToken {
	return t.ranking.Add(svc)
}

// AddMessagingService registers svc under the messaging layer. The event
// pump and the event router live here.
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService registers svc under the api layer. The HTTP server lives
// here.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree and blocks until ctx is canceled or the root
// supervisor gives up.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in its own goroutine. The returned channel
// delivers the final error and is closed once the tree has fully stopped.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
// Call it after ServeBackground's channel closes to log shutdown stragglers.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
