// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package fallback

import (
	"sort"
	"sync"

	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/metrics"
)

// SafeFeed caches broadly appropriate candidates per feed type for the
// degraded path. The engine refreshes it from every successful candidate
// fetch, so its content tracks what the supplier was serving shortly
// before the outage.
//
// Sensitive items never enter the cache. Items are held in a fixed
// safety ordering: base quality first, then recency.
type SafeFeed struct {
	mu       sync.RWMutex
	byType   map[string][]feed.CandidateItem
	capacity int
}

// NewSafeFeed returns an empty cache holding at most capacity items per
// feed type. Values below 1 are raised to 1.
func NewSafeFeed(capacity int) *SafeFeed {
	if capacity < 1 {
		capacity = 1
	}
	return &SafeFeed{
		byType:   make(map[string][]feed.CandidateItem),
		capacity: capacity,
	}
}

// Update replaces the cached candidates for a feed type. Sensitive items
// are dropped and the rest are reordered by quality and recency before
// the capacity cut.
func (s *SafeFeed) Update(feedType string, items []feed.CandidateItem) {
	safe := make([]feed.CandidateItem, 0, len(items))
	for i := range items {
		if items[i].Sensitive {
			continue
		}
		safe = append(safe, items[i])
	}
	sort.SliceStable(safe, func(i, j int) bool {
		if safe[i].BaseScore != safe[j].BaseScore {
			return safe[i].BaseScore > safe[j].BaseScore
		}
		if !safe[i].CreatedAt.Equal(safe[j].CreatedAt) {
			return safe[i].CreatedAt.After(safe[j].CreatedAt)
		}
		return safe[i].ID < safe[j].ID
	})
	if len(safe) > s.capacity {
		safe = safe[:s.capacity]
	}

	s.mu.Lock()
	s.byType[feedType] = safe
	total := 0
	for _, cached := range s.byType {
		total += len(cached)
	}
	s.mu.Unlock()

	metrics.SafeFeedItems.Set(float64(total))
}

// Items returns up to limit cached candidates for a feed type. When the
// requested type has nothing cached, the first non-empty type (by name)
// stands in; generic content beats an empty degraded feed. The returned
// slice is a copy.
func (s *SafeFeed) Items(feedType string, limit int) []feed.CandidateItem {
	if limit <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cached := s.byType[feedType]
	if len(cached) == 0 {
		names := make([]string, 0, len(s.byType))
		for name := range s.byType {
			if len(s.byType[name]) > 0 {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil
		}
		sort.Strings(names)
		cached = s.byType[names[0]]
	}

	if limit > len(cached) {
		limit = len(cached)
	}
	out := make([]feed.CandidateItem, limit)
	copy(out, cached[:limit])
	return out
}

// Len returns how many candidates are cached for a feed type.
func (s *SafeFeed) Len(feedType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byType[feedType])
}
