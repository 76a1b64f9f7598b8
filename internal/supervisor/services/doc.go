// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package services adapts Feedloom components to the suture.Service contract
so the supervisor tree can run them.

Each component has its own lifecycle idiom: http.Server wants
ListenAndServe plus Shutdown, the event pump wants Run, the refresher and
prober are tickers. The wrappers here translate each of those into a single
blocking Serve(ctx) that honors cancellation, and give every service a
stable String() name for supervision logs.

The wrappers are:

  - HTTPServerService: runs an *http.Server, draining connections through
    Shutdown with a bounded timeout when the context ends.
  - EmitterService: runs the bounded event queue pump and lets it flush
    before reporting stopped.
  - EventRouterService: runs the bus consumer that mirrors feed events
    into logs and metrics, waiting for its handlers to come up.
  - SnapshotService: re-reads experiment definitions on an interval,
    holding the last good snapshot across failed refreshes.
  - ProberService: probes the candidate supplier while the engine is
    degraded, driving recovery.

Return conventions follow the supervisor's rules. ctx.Err() after a
cancellation is a normal stop. Any other error signals a crash and earns a
restart. The periodic wrappers only return on cancellation; a failed cycle
is logged and retried on the next tick, because restarting the loop would
change nothing about the upstream fault.

Construction is cheap and side-effect free. Nothing starts until the
supervisor calls Serve, so wrappers can be built in any order while the
server assembles its dependency graph:

	tree.AddRankingService(services.NewProberService(eng, proberCfg, logger))
	tree.AddMessagingService(services.NewEmitterService(emitter))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

Each wrapper tolerates exactly one Serve call at a time, which is what
suture guarantees.
*/
package services
