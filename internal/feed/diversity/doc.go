// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package diversity bounds author and topic concentration in ranked
// feeds.
//
// Enforcement is a two-pass greedy walk over the score-descending list:
// pass 1 accepts items while per-author and per-topic caps hold and
// defers the rest; pass 2 appends deferred items in score order until the
// target size is reached, trading the caps away rather than truncating
// the feed. When the leading items all fall inside the user's strongest
// interests, a bounded share of the remaining slots is handed to
// high-quality items from outside that profile.
//
// Like scoring, enforcement is pure; the same inputs reorder the same
// way every time.
package diversity
