// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package supervisor runs Feedloom's long-lived services under a suture v4
supervision tree.

# Layout

One root supervisor owns three layer supervisors, and every service hangs
off a layer:

	feedloom
	├── ranking-layer
	│   ├── snapshot-refresher   (experiment definitions)
	│   └── fallback-prober      (degraded-mode recovery)
	├── messaging-layer
	│   ├── event-pump           (bounded queue drain)
	│   └── event-router         (bus consumer)
	└── api-layer
	    └── http-api

The layers exist for blast-radius control. Failure counting happens per
layer, so an event router that cannot reach its bus crash-loops and backs
off inside messaging-layer while feed requests keep flowing through
api-layer, and a wedged snapshot refresh cannot pull the HTTP server down
with it.

# Restart Policy

TreeConfig maps directly onto suture.Spec. A service that returns an error
is restarted; once FailureThreshold failures accumulate (decaying with
FailureDecay), the owning layer pauses for FailureBackoff before trying
again. The zero TreeConfig means suture's stock values: threshold 5, decay
30s, backoff 15s, shutdown timeout 10s.

Supervision events (starts, crashes, backoff entry and exit) are logged
through a *slog.Logger handed to NewSupervisorTree. The server bridges its
zerolog logger in via logging.NewSlogLogger, so supervision lines land in
the same stream as everything else.

# Writing Services

Services implement suture.Service plus fmt.Stringer:

	type Service interface {
		Serve(ctx context.Context) error
	}

Serve must block for the service's whole life and watch ctx. Returning
ctx.Err() after cancellation counts as a normal stop. Returning any other
error asks the supervisor for a restart. Returning nil marks the service
complete, and it will not run again.

Periodic loops in this codebase (the snapshot refresher, the prober) log a
failed cycle and wait for the next tick instead of returning an error. A
restart would rebuild the same loop with the same dependencies, so crashing
on a transient upstream error buys nothing.

# Shutdown

Cancel the context given to Serve or ServeBackground. Each service then has
ShutdownTimeout to return before suture abandons it. After the tree stops,
UnstoppedServiceReport names any service that ignored its deadline, which
usually points at a goroutine reading from a connection with no deadline or
waiting on a channel nothing closes.

# What Is Not Supervised

Feed generation itself never appears in the tree. The engine is
request-scoped: each GenerateFeed call recovers its own panics and degrades
through the fallback controller, so there is no long-running loop to
restart. Likewise the in-memory stores own no goroutines; the loops that
poll them are the supervised pieces.
*/
package supervisor
