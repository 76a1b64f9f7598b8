// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package diversity

import (
	"math"

	"github.com/feedloom/feedloom/internal/feed"
)

// Enforcer applies diversity policies to scored lists. It implements
// feed.DiversityEnforcer and carries no state of its own; the policy
// arrives per call so experiment overrides take effect without
// reconstruction.
type Enforcer struct{}

var _ feed.DiversityEnforcer = (*Enforcer)(nil)

// New returns an Enforcer.
func New() *Enforcer {
	return &Enforcer{}
}

// Enforce reorders items under the policy and returns at most target
// items. The input must already be sorted score-descending; relative
// score order is preserved within the accepted and deferred groups.
func (e *Enforcer) Enforce(items []feed.ScoredItem, user *feed.UserContext, target int, policy feed.DiversityPolicy) ([]feed.ScoredItem, feed.DiversityReport) {
	var report feed.DiversityReport

	size := target
	if size > len(items) {
		size = len(items)
	}
	if size <= 0 {
		return nil, report
	}

	selected, deferred := acceptPass(items, size, policy)
	report.Deferred = len(deferred)

	// Filter-bubble intervention runs between the passes so discovery
	// picks claim slots before deferred in-profile items refill them.
	if detectBubble(selected, user, policy) {
		report.BubbleDetected = true
		var picks int
		selected, deferred, picks = injectDiscovery(selected, deferred, user, size, policy)
		report.DiscoveryPicks = picks
	}

	// Pass 2: refill to the target from deferred items, caps no longer
	// binding. Anything readmitted here means the pool could not satisfy
	// the caps at this size.
	for _, item := range deferred {
		if len(selected) >= size {
			break
		}
		selected = append(selected, item)
		report.Readmitted++
	}
	report.Relaxed = report.Readmitted > 0

	return selected, report
}

// acceptPass is pass 1: accept items while the per-author count and
// per-topic share caps hold, defer the rest in score order.
func acceptPass(items []feed.ScoredItem, size int, policy feed.DiversityPolicy) (selected, deferred []feed.ScoredItem) {
	topicCap := topicCapFor(size, policy.MaxTopicShare)
	authorCounts := make(map[string]int)
	topicCounts := make(map[string]int)

	selected = make([]feed.ScoredItem, 0, size)
	for i := range items {
		item := &items[i]
		if len(selected) >= size {
			deferred = append(deferred, *item)
			continue
		}
		if !fitsCaps(item, authorCounts, topicCounts, topicCap, policy.MaxPerAuthor) {
			deferred = append(deferred, *item)
			continue
		}
		authorCounts[item.Item.AuthorID]++
		for _, topic := range item.Item.Topics {
			topicCounts[topic]++
		}
		selected = append(selected, *item)
	}
	return selected, deferred
}

// topicCapFor converts a share into an absolute count for this feed
// size. The cap never drops below 1 or nothing would be selectable.
func topicCapFor(size int, share float64) int {
	if share <= 0 || share > 1 {
		share = 1
	}
	limit := int(math.Floor(share * float64(size)))
	if limit < 1 {
		limit = 1
	}
	return limit
}

func fitsCaps(item *feed.ScoredItem, authorCounts, topicCounts map[string]int, topicCap, authorCap int) bool {
	if authorCap > 0 && authorCounts[item.Item.AuthorID]+1 > authorCap {
		return false
	}
	for _, topic := range item.Item.Topics {
		if topicCounts[topic]+1 > topicCap {
			return false
		}
	}
	return true
}
