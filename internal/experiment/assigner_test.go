// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func algoTestDefinition() Definition {
	recency := 0.7
	return Definition{
		ID:               "algo_test",
		FeedTypes:        []string{"home"},
		TargetPercentage: 100,
		Variants: []Variant{
			{ID: "control", Name: "Control", Allocation: 50, IsControl: true},
			{ID: "high_recency", Name: "High Recency", Allocation: 50,
				Params: Params{RecencyWeight: &recency}},
		},
	}
}

func newTestAssigner(defs ...Definition) *Assigner {
	a := NewAssigner(nil)
	a.Swap(NewSnapshot(defs))
	return a
}

func TestAssignDeterministic(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())

	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("user-%d", i)
		first := a.Assign(userID, "home")
		if first == nil {
			t.Fatalf("user %s: expected assignment at 100%% target", userID)
		}
		for j := 0; j < 20; j++ {
			got := a.Assign(userID, "home")
			if got == nil || got.VariantID != first.VariantID {
				t.Fatalf("user %s: assignment flapped from %s to %+v", userID, first.VariantID, got)
			}
		}
	}
}

func TestAssignDeterministicAcrossInstances(t *testing.T) {
	t.Parallel()

	// No hidden state: a fresh assigner with the same definitions makes
	// identical decisions.
	a1 := newTestAssigner(algoTestDefinition())
	a2 := newTestAssigner(algoTestDefinition())

	for i := 0; i < 200; i++ {
		userID := fmt.Sprintf("user-%d", i)
		r1, r2 := a1.Assign(userID, "home"), a2.Assign(userID, "home")
		if r1.VariantID != r2.VariantID {
			t.Fatalf("user %s: instance disagreement %s vs %s", userID, r1.VariantID, r2.VariantID)
		}
	}
}

func TestFiftyFiftySplitAccuracy(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())

	const users = 10000
	counts := map[string]int{}
	for i := 0; i < users; i++ {
		res := a.Assign(fmt.Sprintf("user-%d", i), "home")
		if res == nil {
			t.Fatalf("user-%d: no assignment at 100%% target", i)
		}
		counts[res.VariantID]++
	}

	// 50/50 split must land within 5 percentage points.
	for _, variant := range []string{"control", "high_recency"} {
		share := float64(counts[variant]) / users * 100
		if share < 45 || share > 55 {
			t.Errorf("variant %s share = %.2f%%, want 50%% +/- 5pp (counts: %v)", variant, share, counts)
		}
	}
}

func TestTenPercentTargetAccuracy(t *testing.T) {
	t.Parallel()

	def := algoTestDefinition()
	def.TargetPercentage = 10
	a := newTestAssigner(def)

	const users = 10000
	included := 0
	for i := 0; i < users; i++ {
		if a.Assign(fmt.Sprintf("user-%d", i), "home") != nil {
			included++
		}
	}

	share := float64(included) / users * 100
	if share < 7 || share > 13 {
		t.Errorf("inclusion share = %.2f%%, want 10%% +/- 3pp", share)
	}
}

func TestExcludedUsersGetNoAssignment(t *testing.T) {
	t.Parallel()

	// Excluded users must be distinguishable from control: they get nil,
	// not a control assignment.
	def := algoTestDefinition()
	def.TargetPercentage = 30
	var events []AssignmentEvent
	a := NewAssigner(func(ev AssignmentEvent) { events = append(events, ev) })
	a.Swap(NewSnapshot([]Definition{def}))

	excludedSeen := false
	for i := 0; i < 200; i++ {
		userID := fmt.Sprintf("user-%d", i)
		res := a.Assign(userID, "home")
		if res == nil {
			excludedSeen = true
			if InclusionBucket(userID, def.ID) < def.TargetPercentage {
				t.Errorf("user %s inside target got nil assignment", userID)
			}
		} else if res.IsControl && InclusionBucket(userID, def.ID) >= def.TargetPercentage {
			t.Errorf("user %s outside target was assigned control", userID)
		}
	}
	if !excludedSeen {
		t.Fatal("expected some exclusions at 30% target")
	}

	var exclusions int
	for _, ev := range events {
		if ev.Kind == EventExcluded {
			exclusions++
			if ev.VariantID != "" {
				t.Error("exclusion event must not carry a variant")
			}
		}
	}
	if exclusions == 0 {
		t.Error("exclusion events should be emitted")
	}
}

func TestHighRecencyWorkedExample(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())

	// Find one user per arm; both arms must be reachable.
	var controlUser, recencyUser string
	for i := 0; i < 1000 && (controlUser == "" || recencyUser == ""); i++ {
		userID := fmt.Sprintf("worked-%d", i)
		switch a.Assign(userID, "home").VariantID {
		case "control":
			controlUser = userID
		case "high_recency":
			recencyUser = userID
		}
	}
	if controlUser == "" || recencyUser == "" {
		t.Fatal("50/50 split should populate both arms within 1000 users")
	}

	ctl := a.Assign(controlUser, "home")
	if !ctl.IsControl || !ctl.Params.IsZero() {
		t.Errorf("control arm should carry no overrides: %+v", ctl)
	}
	rec := a.Assign(recencyUser, "home")
	if rec.IsControl {
		t.Error("high_recency arm flagged as control")
	}
	if rec.Params.RecencyWeight == nil || *rec.Params.RecencyWeight != 0.7 {
		t.Errorf("high_recency params = %+v, want recency weight 0.7", rec.Params)
	}
}

func TestFirstQualifyingExperimentWins(t *testing.T) {
	t.Parallel()

	first := algoTestDefinition()
	second := algoTestDefinition()
	second.ID = "algo_test_2"

	a := newTestAssigner(first, second)
	for i := 0; i < 100; i++ {
		res := a.Assign(fmt.Sprintf("user-%d", i), "home")
		if res.ExperimentID != "algo_test" {
			t.Fatalf("declared-first experiment should win, got %s", res.ExperimentID)
		}
	}
}

func TestExclusionFallsThroughToNextExperiment(t *testing.T) {
	t.Parallel()

	first := algoTestDefinition()
	first.TargetPercentage = 0
	second := algoTestDefinition()
	second.ID = "algo_test_2"

	var events []AssignmentEvent
	a := NewAssigner(func(ev AssignmentEvent) { events = append(events, ev) })
	a.Swap(NewSnapshot([]Definition{first, second}))

	res := a.Assign("user-1", "home")
	if res == nil || res.ExperimentID != "algo_test_2" {
		t.Fatalf("user excluded from first experiment should reach the second, got %+v", res)
	}

	foundExclusion := false
	for _, ev := range events {
		if ev.Kind == EventExcluded && ev.ExperimentID == "algo_test" {
			foundExclusion = true
		}
	}
	if !foundExclusion {
		t.Error("exclusion from the first experiment should be recorded")
	}
}

func TestAssignNoExperimentsForFeedType(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())
	if res := a.Assign("user-1", "explore"); res != nil {
		t.Errorf("no experiment covers explore, got %+v", res)
	}
}

func TestForcedAssignmentShortCircuits(t *testing.T) {
	t.Parallel()

	// Target 0 excludes everyone; the override must still apply.
	def := algoTestDefinition()
	def.TargetPercentage = 0
	a := newTestAssigner(def)

	if err := a.Force("qa-user", "algo_test", "high_recency"); err != nil {
		t.Fatalf("Force() error = %v", err)
	}

	res := a.Assign("qa-user", "home")
	if res == nil || res.VariantID != "high_recency" || !res.Forced {
		t.Fatalf("forced assignment not honored: %+v", res)
	}
	if res.Params.RecencyWeight == nil {
		t.Error("forced assignment should resolve variant params")
	}

	a.Unforce("qa-user", "algo_test")
	if res := a.Assign("qa-user", "home"); res != nil {
		t.Errorf("after Unforce the hash decides again, got %+v", res)
	}
}

func TestForceValidatesAgainstSnapshot(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())

	if err := a.Force("u", "missing_experiment", "control"); err == nil {
		t.Error("forcing an unknown experiment should fail")
	}
	if err := a.Force("u", "algo_test", "missing_variant"); err == nil {
		t.Error("forcing an unknown variant should fail")
	}
	if err := a.Force("", "algo_test", "control"); err == nil {
		t.Error("forcing without a user should fail")
	}
}

func TestForcedOverrideDroppedWhenVariantVanishes(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())
	if err := a.Force("qa-user", "algo_test", "high_recency"); err != nil {
		t.Fatalf("Force() error = %v", err)
	}

	// Redefine the experiment without the forced variant.
	shrunk := algoTestDefinition()
	shrunk.Variants = []Variant{{ID: "control", Allocation: 100, IsControl: true}}
	a.Swap(NewSnapshot([]Definition{shrunk}))

	res := a.Assign("qa-user", "home")
	if res == nil {
		t.Fatal("expected hashed assignment after override dropped")
	}
	if res.Forced || res.VariantID != "control" {
		t.Errorf("vanished variant override should fall back to hashing, got %+v", res)
	}
}

func TestPeekEmitsNothing(t *testing.T) {
	t.Parallel()

	var events []AssignmentEvent
	a := NewAssigner(func(ev AssignmentEvent) { events = append(events, ev) })
	a.Swap(NewSnapshot([]Definition{algoTestDefinition()}))

	res := a.Peek("user-1", "home")
	if res == nil {
		t.Fatal("Peek should resolve the assignment")
	}
	if len(events) != 0 {
		t.Errorf("Peek must not emit events, got %d", len(events))
	}

	if got := a.Assign("user-1", "home"); got.VariantID != res.VariantID {
		t.Error("Peek and Assign must agree")
	}
}

type failingStore struct{}

func (failingStore) Definitions(context.Context) ([]Definition, error) {
	return nil, errors.New("store down")
}

func TestRefreshKeepsStaleSnapshotOnFailure(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())

	if err := a.Refresh(context.Background(), failingStore{}); err == nil {
		t.Fatal("expected refresh error")
	}
	if res := a.Assign("user-1", "home"); res == nil {
		t.Error("stale snapshot should keep serving after failed refresh")
	}
}

func TestRefreshSwapsSnapshot(t *testing.T) {
	t.Parallel()

	a := newTestAssigner(algoTestDefinition())
	store := NewMemoryStore(nil)

	if err := a.Refresh(context.Background(), store); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if res := a.Assign("user-1", "home"); res != nil {
		t.Errorf("emptied store should clear assignments, got %+v", res)
	}
}
