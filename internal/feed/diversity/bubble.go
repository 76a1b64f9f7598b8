// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package diversity

import (
	"math"
	"sort"

	"github.com/feedloom/feedloom/internal/feed"
)

// detectBubble reports whether the leading selected items sit entirely
// inside the user's strongest interests. Detection needs both a profile
// and topical items; without either there is no bubble to speak of.
func detectBubble(selected []feed.ScoredItem, user *feed.UserContext, policy feed.DiversityPolicy) bool {
	if user == nil || len(user.TopicInterests) == 0 || len(selected) == 0 {
		return false
	}
	if policy.BubbleTopN <= 0 || policy.BubbleTopK <= 0 || policy.DiscoveryRatio <= 0 {
		return false
	}

	top := selected
	if len(top) > policy.BubbleTopN {
		top = top[:policy.BubbleTopN]
	}

	profile := topInterests(user.TopicInterests, policy.BubbleTopK)
	sawTopic := false
	for i := range top {
		for _, topic := range top[i].Item.Topics {
			sawTopic = true
			if _, ok := profile[topic]; !ok {
				return false
			}
		}
	}
	return sawTopic
}

// injectDiscovery reserves a bounded share of the slots after the
// leading items for high-quality out-of-profile picks from the deferred
// set. Picks displace the lowest-scored selections beyond the head;
// displaced items rejoin the deferred pool for pass 2.
func injectDiscovery(selected, deferred []feed.ScoredItem, user *feed.UserContext, size int, policy feed.DiversityPolicy) (newSelected, newDeferred []feed.ScoredItem, picked int) {
	n := policy.BubbleTopN
	if n > len(selected) {
		n = len(selected)
	}
	remaining := size - n
	slots := int(math.Floor(policy.DiscoveryRatio * float64(remaining)))
	if slots <= 0 {
		return selected, deferred, 0
	}

	profile := topInterests(user.TopicInterests, policy.BubbleTopK)
	var picks []feed.ScoredItem
	kept := deferred[:0:0]
	for i := range deferred {
		if len(picks) < slots && isDiscovery(&deferred[i], profile, policy.DiscoveryQualityThreshold) {
			picks = append(picks, deferred[i])
			continue
		}
		kept = append(kept, deferred[i])
	}
	if len(picks) == 0 {
		return selected, deferred, 0
	}

	head := selected[:n]
	tail := selected[n:]
	keepTail := remaining - len(picks)
	if keepTail < 0 {
		keepTail = 0
	}
	if keepTail > len(tail) {
		keepTail = len(tail)
	}
	displaced := tail[keepTail:]

	region := make([]feed.ScoredItem, 0, keepTail+len(picks))
	region = append(region, tail[:keepTail]...)
	region = append(region, picks...)
	sort.SliceStable(region, func(i, j int) bool { return region[i].Score > region[j].Score })

	out := make([]feed.ScoredItem, 0, n+len(region))
	out = append(out, head...)
	out = append(out, region...)

	kept = append(kept, displaced...)
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return out, kept, len(picks)
}

// isDiscovery reports whether an item carries at least one topic outside
// the profile and clears the quality bar.
func isDiscovery(item *feed.ScoredItem, profile map[string]struct{}, qualityThreshold float64) bool {
	if item.Item.BaseScore < qualityThreshold {
		return false
	}
	for _, topic := range item.Item.Topics {
		if _, ok := profile[topic]; !ok {
			return true
		}
	}
	return false
}

// topInterests returns the user's k strongest interest topics. Ties
// break lexicographically so detection is deterministic.
func topInterests(interests map[string]float64, k int) map[string]struct{} {
	type entry struct {
		topic  string
		weight float64
	}
	entries := make([]entry, 0, len(interests))
	for topic, weight := range interests {
		entries = append(entries, entry{topic, weight})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		return entries[i].topic < entries[j].topic
	})

	if k > len(entries) {
		k = len(entries)
	}
	top := make(map[string]struct{}, k)
	for _, e := range entries[:k] {
		top[e.topic] = struct{}{}
	}
	return top
}
