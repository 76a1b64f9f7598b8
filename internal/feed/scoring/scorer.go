// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/feedloom/feedloom/internal/feed"
)

// Recency step function bands. Age is measured against the context's
// ResolvedAt; items with no usable timestamp fall into the oldest band.
const (
	recencyFresh  = 1.0 // <= 1 hour
	recencyRecent = 0.8 // <= 6 hours
	recencyToday  = 0.6 // <= 24 hours
	recencyDays   = 0.4 // <= 72 hours
	recencyStale  = 0.2 // older
)

const (
	recencyBand1 = time.Hour
	recencyBand2 = 6 * time.Hour
	recencyBand3 = 24 * time.Hour
	recencyBand4 = 72 * time.Hour
)

// Scorer is the stateless score computer. It implements feed.Scorer.
type Scorer struct{}

var _ feed.Scorer = (*Scorer)(nil)

// New returns a Scorer.
func New() *Scorer {
	return &Scorer{}
}

// Score computes the itemized score for one item. It returns an error
// only for items whose signals cannot produce a finite score; the caller
// drops such items and keeps going.
func (s *Scorer) Score(item *feed.CandidateItem, user *feed.UserContext, weights feed.Weights) (feed.ScoreBreakdown, error) {
	var b feed.ScoreBreakdown

	if item.ID == "" {
		return b, fmt.Errorf("item without id")
	}

	b.Recency = weights.Recency * RecencyStep(item.CreatedAt, user.ResolvedAt)
	b.Popularity = weights.Popularity * popularity(item)
	b.Relevance = weights.Relevance * topicRelevance(item, user)
	b.ContentType = contentTypePreference(item, user)
	b.Context = ContextBoosts(item, user)

	if total := b.Total(); math.IsNaN(total) || math.IsInf(total, 0) {
		return feed.ScoreBreakdown{}, fmt.Errorf("item %s: non-finite score from base %g", item.ID, item.BaseScore)
	}
	return b, nil
}

// RecencyStep maps item age to a monotonically non-increasing step value.
// Future-dated items count as fresh; a zero CreatedAt counts as stale.
func RecencyStep(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return recencyStale
	}
	age := now.Sub(createdAt)
	switch {
	case age <= recencyBand1:
		return recencyFresh
	case age <= recencyBand2:
		return recencyRecent
	case age <= recencyBand3:
		return recencyToday
	case age <= recencyBand4:
		return recencyDays
	default:
		return recencyStale
	}
}

// popularity clamps the upstream signal into [0, 1]. Out-of-range values
// come from supplier bugs; clamping keeps one bad item from dominating a
// feed.
func popularity(item *feed.CandidateItem) float64 {
	switch {
	case item.BaseScore < 0:
		return 0
	case item.BaseScore > 1:
		return 1
	default:
		return item.BaseScore
	}
}

// topicRelevance sums the user's interest weights over the item's topics.
func topicRelevance(item *feed.CandidateItem, user *feed.UserContext) float64 {
	if len(user.TopicInterests) == 0 {
		return 0
	}
	sum := 0.0
	for _, topic := range item.Topics {
		sum += user.TopicInterests[topic]
	}
	return sum
}

// contentTypePreference returns the user's preference weight for the
// item's format. Absent preferences contribute nothing.
func contentTypePreference(item *feed.CandidateItem, user *feed.UserContext) float64 {
	if len(user.ContentTypePrefs) == 0 {
		return 0
	}
	return user.ContentTypePrefs[item.ContentType]
}
