// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package experiment implements deterministic A/B experiment assignment
// for feed generation.
//
// Assignment is a pure function of (user ID, experiment ID) and the
// experiment definition: the same inputs always produce the same variant,
// with no persisted assignment state. Definitions live in an immutable
// snapshot that is swapped atomically on refresh, so concurrent
// assignments never observe a partially updated configuration.
//
// Two independent hash buckets drive the decision. The inclusion bucket
// decides whether the user participates at all (compared against the
// experiment's target percentage), and a separately salted variant bucket
// picks the variant by walking cumulative allocations in declared order.
// Keeping the buckets independent means changing a target percentage does
// not reshuffle variant membership among already included users.
package experiment
