// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package events carries generation and assignment outcomes to downstream
consumers over a Watermill bus.

The Emitter is the write side: the feed engine and the experiment
assigner hand it events, a bounded queue decouples them from delivery,
and a worker publishes to the configured transport. A full queue drops
events and counts the drop; producing an event never blocks or fails a
feed request.

The default transport is an in-process gochannel bus. Binaries built
with the nats tag can publish to NATS JetStream instead; without the
tag the NATS constructor returns an error and the caller falls back to
the in-process bus.
*/
package events
