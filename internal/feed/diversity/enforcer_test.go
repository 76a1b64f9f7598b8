// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package diversity

import (
	"fmt"
	"sort"
	"testing"

	"github.com/feedloom/feedloom/internal/feed"
)

func testPolicy() feed.DiversityPolicy {
	return feed.DiversityPolicy{
		MaxPerAuthor:              2,
		MaxTopicShare:             0.5,
		MinFeedSize:               3,
		BubbleTopN:                5,
		BubbleTopK:                2,
		DiscoveryRatio:            0.3,
		DiscoveryQualityThreshold: 0.6,
	}
}

// scored builds a descending-score list from (author, topic) pairs.
func scored(specs ...[2]string) []feed.ScoredItem {
	items := make([]feed.ScoredItem, len(specs))
	for i, s := range specs {
		items[i] = feed.ScoredItem{
			Item: feed.CandidateItem{
				ID:       fmt.Sprintf("item-%d", i),
				AuthorID: s[0],
				Topics:   []string{s[1]},
			},
			Score: float64(len(specs) - i),
		}
	}
	return items
}

func authorCounts(items []feed.ScoredItem) map[string]int {
	counts := make(map[string]int)
	for i := range items {
		counts[items[i].Item.AuthorID]++
	}
	return counts
}

func topicCounts(items []feed.ScoredItem) map[string]int {
	counts := make(map[string]int)
	for i := range items {
		for _, topic := range items[i].Item.Topics {
			counts[topic]++
		}
	}
	return counts
}

func TestEnforceAuthorCap(t *testing.T) {
	t.Parallel()

	// Author a floods the top of the list; plenty of alternatives exist.
	items := scored(
		[2]string{"a", "t1"}, [2]string{"a", "t2"}, [2]string{"a", "t3"}, [2]string{"a", "t4"},
		[2]string{"b", "t5"}, [2]string{"c", "t6"}, [2]string{"d", "t7"}, [2]string{"e", "t8"},
	)

	out, report := New().Enforce(items, &feed.UserContext{}, 6, testPolicy())
	if len(out) != 6 {
		t.Fatalf("got %d items, want 6", len(out))
	}
	if n := authorCounts(out)["a"]; n > 2 {
		t.Errorf("author a holds %d slots, cap is 2", n)
	}
	if report.Deferred == 0 {
		t.Error("expected deferrals for the flooded author")
	}
	if report.Relaxed {
		t.Error("pool satisfies caps at size 6; no relaxation expected")
	}
}

func TestEnforceTopicShare(t *testing.T) {
	t.Parallel()

	// Topic t1 dominates; share cap 0.5 at size 6 allows 3.
	items := scored(
		[2]string{"a", "t1"}, [2]string{"b", "t1"}, [2]string{"c", "t1"}, [2]string{"d", "t1"},
		[2]string{"e", "t1"}, [2]string{"f", "t2"}, [2]string{"g", "t3"}, [2]string{"h", "t4"},
	)

	out, _ := New().Enforce(items, &feed.UserContext{}, 6, testPolicy())
	if len(out) != 6 {
		t.Fatalf("got %d items, want 6", len(out))
	}
	if n := topicCounts(out)["t1"]; n > 3 {
		t.Errorf("topic t1 holds %d of 6 slots, share cap 0.5 allows 3", n)
	}
}

func TestEnforcePreservesScoreOrderWithinGroups(t *testing.T) {
	t.Parallel()

	items := scored(
		[2]string{"a", "t1"}, [2]string{"b", "t2"}, [2]string{"c", "t3"},
		[2]string{"d", "t4"}, [2]string{"e", "t5"},
	)

	out, _ := New().Enforce(items, &feed.UserContext{}, 5, testPolicy())
	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Score > out[j].Score }) {
		t.Error("unconstrained input should come back score-descending")
	}
}

func TestEnforceRefillsFromDeferred(t *testing.T) {
	t.Parallel()

	// Only author a exists: caps cannot hold at size 4.
	items := scored(
		[2]string{"a", "t1"}, [2]string{"a", "t2"}, [2]string{"a", "t3"}, [2]string{"a", "t4"},
	)

	out, report := New().Enforce(items, &feed.UserContext{}, 4, testPolicy())
	if len(out) != 4 {
		t.Fatalf("feed must not be truncated below the pool size, got %d", len(out))
	}
	if !report.Relaxed || report.Readmitted == 0 {
		t.Errorf("single-author pool should relax caps, report: %+v", report)
	}
	// Best-effort order is still score order.
	for i := range out {
		if out[i].Item.ID != fmt.Sprintf("item-%d", i) {
			t.Errorf("position %d = %s, want item-%d", i, out[i].Item.ID, i)
		}
	}
}

func TestEnforceTargetLargerThanPool(t *testing.T) {
	t.Parallel()

	items := scored([2]string{"a", "t1"}, [2]string{"b", "t2"})
	out, _ := New().Enforce(items, &feed.UserContext{}, 50, testPolicy())
	if len(out) != 2 {
		t.Errorf("got %d items, want the whole pool (2)", len(out))
	}
}

func TestEnforceEmptyInput(t *testing.T) {
	t.Parallel()

	out, report := New().Enforce(nil, &feed.UserContext{}, 10, testPolicy())
	if len(out) != 0 {
		t.Errorf("empty input should yield empty output, got %d", len(out))
	}
	if report.Deferred != 0 || report.Relaxed {
		t.Errorf("empty input should produce a zero report, got %+v", report)
	}
}

func TestEnforceNeverInventsItems(t *testing.T) {
	t.Parallel()

	items := scored(
		[2]string{"a", "t1"}, [2]string{"a", "t1"}, [2]string{"b", "t2"},
		[2]string{"c", "t1"}, [2]string{"d", "t3"},
	)
	inputIDs := make(map[string]bool)
	for i := range items {
		inputIDs[items[i].Item.ID] = true
	}

	out, _ := New().Enforce(items, &feed.UserContext{}, 4, testPolicy())
	if len(out) > 4 {
		t.Fatalf("returned %d items, target was 4", len(out))
	}
	seen := make(map[string]bool)
	for i := range out {
		id := out[i].Item.ID
		if !inputIDs[id] {
			t.Errorf("item %s not in input", id)
		}
		if seen[id] {
			t.Errorf("item %s duplicated", id)
		}
		seen[id] = true
	}
}

func TestEnforceDeterministic(t *testing.T) {
	t.Parallel()

	items := scored(
		[2]string{"a", "t1"}, [2]string{"a", "t2"}, [2]string{"b", "t1"},
		[2]string{"c", "t3"}, [2]string{"a", "t4"}, [2]string{"d", "t1"},
	)
	user := &feed.UserContext{TopicInterests: map[string]float64{"t1": 0.9, "t2": 0.5}}

	first, firstReport := New().Enforce(items, user, 5, testPolicy())
	for i := 0; i < 20; i++ {
		again, againReport := New().Enforce(items, user, 5, testPolicy())
		if len(again) != len(first) {
			t.Fatalf("length changed between runs: %d vs %d", len(first), len(again))
		}
		for j := range again {
			if again[j].Item.ID != first[j].Item.ID {
				t.Fatalf("order changed between runs at %d", j)
			}
		}
		if againReport != firstReport {
			t.Fatalf("report changed between runs: %+v vs %+v", firstReport, againReport)
		}
	}
}
