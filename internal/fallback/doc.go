// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package fallback keeps feed generation available when upstreams are not.

It has three pieces:

  - Controller: a lock-free health state machine (HEALTHY, RECOVERING,
    DEGRADED). Any upstream failure degrades; a successful supplier probe
    starts recovery; a configured number of consecutive full-path
    successes restores health. All transitions go through atomic
    compare-and-swap, so concurrent generations agree on the state
    without locking.

  - Breaker: a sony/gobreaker circuit breaker around candidate
    retrieval. It stops hammering a failing supplier and rejects calls
    outright while open, which the engine treats like any other upstream
    failure.

  - SafeFeed: a per-feed-type cache of recently fetched candidates,
    filtered of sensitive content. Degraded requests are answered from
    here, from memory, well inside the latency ceiling.

The engine reports outcomes to the Controller and consults it per
request; the prober service drives DEGRADED to RECOVERING from outside
the request path.
*/
package fallback
