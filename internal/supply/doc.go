// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package supply provides the in-memory candidate supplier and profile
source backing the ranking engine.

Memory holds candidate items per feed type and serves them to the
engine's fetch stage. It supports failure and latency injection so the
fallback path can be exercised end to end without a real upstream.
MemoryProfiles stores user interest profiles for the context resolver.
SeedDemoData fills both with deterministic generated content for local
development.

Production deployments replace Memory with a supplier backed by the
real content services; the engine only sees the CandidateSupplier and
ProfileSource interfaces.
*/
package supply
