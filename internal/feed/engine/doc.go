// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package engine orchestrates feed generation end to end: context
resolution, experiment assignment, candidate retrieval through a
circuit breaker, scoring, diversity enforcement, and pagination.

The engine never surfaces an error past request validation. Every
downstream failure, including panics on the generation path, is
reported to the fallback controller and answered with a degraded feed
drawn from the safe-feed cache. Callers can therefore treat a non-nil
GeneratedFeed as the invariant and inspect Metadata.Degraded for
quality.

The engine is safe for concurrent use. All request-scoped state lives
on the stack; shared collaborators (assigner, controller, safe feed)
manage their own synchronization.
*/
package engine
