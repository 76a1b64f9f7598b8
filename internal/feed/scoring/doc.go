// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package scoring computes per-item feed scores.
//
// A score is the weighted sum of a recency step function, the item's
// upstream popularity signal, and the user's topic-interest match, plus
// the user's content-type preference and a set of additive contextual
// boosts (time of day, weather, season, device, bandwidth, accessibility).
//
// Scoring is pure: identical inputs produce bit-identical breakdowns.
// There is no randomness, no clock access (elapsed time comes in through
// the reference time), and no I/O. The engine relies on this to re-score
// items freely and to compare experiment arms without noise.
package scoring
