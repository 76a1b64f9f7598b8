// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package main is the entry point for the Feedloom server application.
//
// Feedloom generates personalized, ranked content feeds with built-in
// A/B experimentation and graceful degradation. It scores candidate items
// against user profiles and request context, enforces diversity rules on
// the ranked output, and serves a precomputed safe feed whenever upstream
// candidate retrieval fails.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, YAML file, and environment (Koanf v2)
//  2. Candidate supply: in-memory supplier and profile source, optionally demo-seeded
//  3. Event stream: watermill bus, publisher selection, bounded-queue emitter
//  4. Experiments: definition conversion, snapshot store, assigner
//  5. Feed engine: scorer, diversity enforcer, fallback controller, safe-feed warmup
//  6. HTTP surface: chi router, middleware stack, http.Server
//  7. Supervision: suture tree running all long-lived services
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (FEED_*, HTTP_*, EVENTS_*, ...)
//   - Config file (feedloom.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// When a config file is present it is also watched: edits to the
// experiments section are converted, validated, and swapped into the
// running assigner without a restart. Malformed definitions are dropped
// with a logged configuration error; the last good snapshot stays active.
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/server  # Publish events to NATS JetStream
//
// Without the tag, events stay on the in-process bus where the event
// router mirrors them into logs and metrics.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (shutdown timeout)
//   - Drains queued events before stopping the emitter
//   - Reports services that failed to stop within the timeout
//
// # Example Usage
//
// Development with demo data:
//
//	export SEED_DEMO_DATA=true
//	export LOG_FORMAT=console
//	./feedloom
//
// Production with NATS publishing (requires -tags nats build):
//
//	export EVENTS_NATS_ENABLED=true
//	export EVENTS_NATS_URL=nats://nats:4222
//	./feedloom
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/feedloom/feedloom/internal/api"
	"github.com/feedloom/feedloom/internal/config"
	"github.com/feedloom/feedloom/internal/events"
	"github.com/feedloom/feedloom/internal/experiment"
	"github.com/feedloom/feedloom/internal/feed/diversity"
	"github.com/feedloom/feedloom/internal/feed/engine"
	"github.com/feedloom/feedloom/internal/feed/scoring"
	"github.com/feedloom/feedloom/internal/logging"
	"github.com/feedloom/feedloom/internal/supervisor"
	"github.com/feedloom/feedloom/internal/supervisor/services"
	"github.com/feedloom/feedloom/internal/supply"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Strs("feed_types", cfg.Feed.FeedTypes).
		Int("experiments", len(cfg.Experiments.Definitions)).
		Bool("nats_enabled", cfg.Events.NATSEnabled).
		Msg("Starting Feedloom with supervisor tree")

	// Candidate supply. The in-memory supplier doubles as the Ping target
	// for recovery probing.
	supplier := supply.NewMemory()
	profiles := supply.NewMemoryProfiles()
	if cfg.Supply.SeedDemoData {
		supply.SeedDemoData(supplier, profiles, cfg.Feed.FeedTypes, cfg.Supply.DemoItemCount)
		logging.Info().
			Int("per_feed", cfg.Supply.DemoItemCount).
			Msg("Demo data seeded (SEED_DEMO_DATA=true)")
	}

	// Event stream. The in-process bus always exists; NATS JetStream
	// replaces the publish side when enabled and compiled in.
	bus := events.NewBus(int64(cfg.Events.BufferSize), logging.Logger())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	var publisher message.Publisher = bus.Publisher()
	mirrorLocally := true
	if cfg.Events.NATSEnabled {
		natsPub, err := events.NewNATSPublisher(cfg.Events, logging.Logger())
		if err != nil {
			logging.Warn().Err(err).Msg("NATS publisher unavailable, falling back to in-process bus")
		} else {
			publisher = natsPub
			mirrorLocally = false
			defer func() {
				if err := natsPub.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing NATS publisher")
				}
			}()
			logging.Info().Str("url", cfg.Events.NATSURL).Msg("Publishing events to NATS JetStream")
		}
	}

	emitter := events.NewEmitter(publisher, cfg.Events.BufferSize)

	// Experiments. Malformed definitions are dropped with a logged
	// configuration error rather than failing startup.
	defs, convErrs := experiment.FromConfig(cfg.Experiments.Definitions, cfg.Experiments.AllocationTolerance)
	for _, convErr := range convErrs {
		logging.Warn().Err(convErr).Msg("Dropping malformed experiment definition")
	}
	store := experiment.NewMemoryStore(defs)
	assigner := experiment.NewAssigner(emitter.Observer())

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := assigner.Refresh(startupCtx, store); err != nil {
		logging.Warn().Err(err).Msg("Initial experiment snapshot load failed")
	}
	logging.Info().Int("active", len(assigner.Snapshot().All())).Msg("Experiment snapshot loaded")

	// Feed engine
	eng, err := engine.New(engine.Deps{
		Config:    cfg,
		Supplier:  supplier,
		Profiles:  profiles,
		Scorer:    scoring.New(),
		Diversity: diversity.New(),
		Assigner:  assigner,
		Events:    emitter,
		Logger:    logging.WithComponent("engine"),
	})
	if err != nil {
		cancelStartup()
		logging.Fatal().Err(err).Msg("Failed to create feed engine")
	}

	// Prime safe feeds so degraded requests have content before the
	// first successful generation
	if err := eng.Warm(startupCtx); err != nil {
		logging.Warn().Err(err).Msg("Safe feed warmup failed, degraded responses may start empty")
	}
	cancelStartup()

	// HTTP surface
	handler := api.NewHandler(eng, cfg)
	router := api.NewRouter(handler, cfg)
	server := router.Server(cfg.Server)

	// Event router mirrors bus traffic into logs and metrics. With NATS
	// publishing active there is nothing on the local bus to mirror.
	var eventRouter *events.Router
	if mirrorLocally {
		eventRouter, err = events.NewRouter(events.DefaultRouterConfig(), bus.Subscriber(), cfg.Feed.FeedTypes, logging.Logger())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create event router")
		}
	}

	// Hot reload of experiment definitions from the config file
	if path := config.ActiveConfigFile(); path != "" {
		watchErr := config.WatchConfigFile(path, func() {
			reloadExperiments(store, assigner)
		})
		if watchErr != nil {
			logging.Warn().Err(watchErr).Str("path", path).Msg("Config file watch unavailable")
		} else {
			logging.Info().Str("path", path).Msg("Watching config file for experiment changes")
		}
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for the supervisor using the slog adapter.
	// This bridges zerolog to slog for sutureslog compatibility.
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Ranking layer services
	tree.AddRankingService(services.NewSnapshotService(assigner, store, services.SnapshotServiceConfig{
		RefreshInterval: cfg.Experiments.RefreshInterval,
	}, logging.Logger()))
	tree.AddRankingService(services.NewProberService(eng, services.ProberServiceConfig{
		ProbeInterval: cfg.Fallback.ProbeInterval,
	}, logging.Logger()))

	// Messaging layer services
	tree.AddMessagingService(services.NewEmitterService(emitter))
	if eventRouter != nil {
		tree.AddMessagingService(services.NewEventRouterService(eventRouter))
	}

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// reloadExperiments re-reads the configuration and swaps the experiment
// definitions into the running store and assigner. Any load or conversion
// failure keeps the previous snapshot.
func reloadExperiments(store *experiment.MemoryStore, assigner *experiment.Assigner) {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Warn().Err(err).Msg("Config reload failed, keeping previous experiments")
		return
	}

	defs, convErrs := experiment.FromConfig(cfg.Experiments.Definitions, cfg.Experiments.AllocationTolerance)
	for _, convErr := range convErrs {
		logging.Warn().Err(convErr).Msg("Dropping malformed experiment definition")
	}
	store.Replace(defs)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := assigner.Refresh(ctx, store); err != nil {
		logging.Warn().Err(err).Msg("Experiment snapshot refresh failed after reload")
		return
	}

	logging.Info().Int("active", len(defs)).Msg("Experiment definitions reloaded")
}
