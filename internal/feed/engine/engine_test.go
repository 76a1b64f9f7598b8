// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/config"
	"github.com/feedloom/feedloom/internal/experiment"
	"github.com/feedloom/feedloom/internal/fallback"
	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/feed/diversity"
	"github.com/feedloom/feedloom/internal/feed/scoring"
)

// stubSupplier is a scriptable candidate source. Tests flip err and
// pingErr between calls; the engine under test is exercised
// sequentially, so no locking is needed.
type stubSupplier struct {
	items   []feed.CandidateItem
	err     error
	pingErr error
	delay   time.Duration
	calls   int
	pings   int
}

var _ feed.CandidateSupplier = (*stubSupplier)(nil)

func (s *stubSupplier) ListCandidates(ctx context.Context, _, _ string, limit int) ([]feed.CandidateItem, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]feed.CandidateItem, len(s.items))
	copy(out, s.items)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubSupplier) Ping(context.Context) error {
	s.pings++
	return s.pingErr
}

// faultyScorer fails specific item IDs and defers the rest to the real
// scorer.
type faultyScorer struct {
	real    *scoring.Scorer
	failIDs map[string]bool
}

var _ feed.Scorer = (*faultyScorer)(nil)

func (f *faultyScorer) Score(item *feed.CandidateItem, user *feed.UserContext, weights feed.Weights) (feed.ScoreBreakdown, error) {
	if f.failIDs[item.ID] {
		return feed.ScoreBreakdown{}, fmt.Errorf("%w: synthetic fault for %s", feed.ErrScoringFault, item.ID)
	}
	return f.real.Score(item, user, weights)
}

// panicScorer panics on every item.
type panicScorer struct{}

var _ feed.Scorer = panicScorer{}

func (panicScorer) Score(*feed.CandidateItem, *feed.UserContext, feed.Weights) (feed.ScoreBreakdown, error) {
	panic("synthetic scorer panic")
}

// recordingSink captures emitted feeds in order.
type recordingSink struct {
	feeds []*feed.GeneratedFeed
}

var _ feed.EventSink = (*recordingSink)(nil)

func (r *recordingSink) FeedGenerated(generated *feed.GeneratedFeed) {
	r.feeds = append(r.feeds, generated)
}

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Feed: config.FeedConfig{
			FeedTypes:        []string{"home", "explore"},
			RecencyWeight:    0.5,
			PopularityWeight: 0.3,
			RelevanceWeight:  0.2,
			MaxCandidates:    500,
			CandidateTimeout: 800 * time.Millisecond,
		},
		Diversity: config.DiversityConfig{
			MaxPerAuthor:              3,
			MaxTopicShare:             0.5,
			MinFeedSize:               5,
			BubbleTopN:                10,
			BubbleTopK:                3,
			DiscoveryRatio:            0.3,
			DiscoveryQualityThreshold: 0.6,
		},
		Fallback: config.FallbackConfig{
			RecoveryThreshold:       2,
			ProbeInterval:           5 * time.Second,
			LatencyCeiling:          2 * time.Second,
			SafeFeedCapacity:        200,
			BreakerMaxRequests:      3,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 0.6,
			BreakerMinRequests:      10,
		},
	}
}

type engineFixture struct {
	engine   *Engine
	supplier *stubSupplier
	assigner *experiment.Assigner
	sink     *recordingSink
	cfg      *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) *engineFixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	supplier := &stubSupplier{}
	assigner := experiment.NewAssigner(nil)
	sink := &recordingSink{}

	eng, err := New(Deps{
		Config:    cfg,
		Supplier:  supplier,
		Scorer:    scoring.New(),
		Diversity: diversity.New(),
		Assigner:  assigner,
		Events:    sink,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &engineFixture{
		engine:   eng,
		supplier: supplier,
		assigner: assigner,
		sink:     sink,
		cfg:      cfg,
	}
}

// plainCandidates builds topicless fresh items with strictly descending
// popularity, so full-path ranking follows the index order.
func plainCandidates(n int) []feed.CandidateItem {
	now := time.Now()
	items := make([]feed.CandidateItem, n)
	for i := 0; i < n; i++ {
		items[i] = feed.CandidateItem{
			ID:        fmt.Sprintf("c-%03d", i),
			AuthorID:  fmt.Sprintf("author-%03d", i),
			CreatedAt: now.Add(-time.Duration(i+5) * time.Second),
			BaseScore: 1 - float64(i)/float64(2*n),
		}
	}
	return items
}

func homeRequest(userID string) feed.Request {
	return feed.Request{UserID: userID, FeedType: "home"}
}

func algoTestSnapshot() *experiment.Snapshot {
	recency := 0.7
	return experiment.NewSnapshot([]experiment.Definition{{
		ID:               "algo_test",
		FeedTypes:        []string{"home"},
		TargetPercentage: 100,
		Variants: []experiment.Variant{
			{ID: "control", Name: "Control", Allocation: 50, IsControl: true},
			{ID: "high_recency", Name: "High recency", Allocation: 50, Params: experiment.Params{RecencyWeight: &recency}},
		},
	}})
}

// findUserInArm scans user IDs until one hashes into the requested arm
// of a 50/50 split where the control variant is declared first.
func findUserInArm(t *testing.T, experimentID string, high bool) string {
	t.Helper()
	for i := 0; i < 4096; i++ {
		uid := fmt.Sprintf("user-%04d", i)
		if (experiment.VariantBucket(uid, experimentID) >= 50) == high {
			return uid
		}
	}
	t.Fatalf("no user hashes into the requested arm of %s", experimentID)
	return ""
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	valid := func() Deps {
		return Deps{
			Config:    testConfig(),
			Supplier:  &stubSupplier{},
			Scorer:    scoring.New(),
			Diversity: diversity.New(),
			Assigner:  experiment.NewAssigner(nil),
			Logger:    zerolog.Nop(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{name: "missing config", mutate: func(d *Deps) { d.Config = nil }},
		{name: "missing supplier", mutate: func(d *Deps) { d.Supplier = nil }},
		{name: "missing scorer", mutate: func(d *Deps) { d.Scorer = nil }},
		{name: "missing diversity", mutate: func(d *Deps) { d.Diversity = nil }},
		{name: "missing assigner", mutate: func(d *Deps) { d.Assigner = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			deps := valid()
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Error("expected a construction error")
			}
		})
	}

	if _, err := New(valid()); err != nil {
		t.Errorf("valid deps rejected: %v", err)
	}
}

func TestGenerateFeedHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(30)

	generated, err := f.engine.GenerateFeed(context.Background(), homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}

	if len(generated.Items) != 20 {
		t.Fatalf("items = %d, want default page size 20", len(generated.Items))
	}
	if generated.Items[0].Item.ID != "c-000" {
		t.Errorf("top item = %s, want c-000", generated.Items[0].Item.ID)
	}
	for i, item := range generated.Items {
		if item.Rank != i+1 {
			t.Errorf("item %d rank = %d, want %d", i, item.Rank, i+1)
		}
	}

	meta := generated.Metadata
	if meta.Degraded {
		t.Error("feed unexpectedly degraded")
	}
	if meta.CandidateCount != 30 {
		t.Errorf("CandidateCount = %d, want 30", meta.CandidateCount)
	}
	if meta.ReturnedCount != 20 {
		t.Errorf("ReturnedCount = %d, want 20", meta.ReturnedCount)
	}
	if meta.AlgorithmID != AlgorithmID || meta.AlgorithmVersion != AlgorithmVersion {
		t.Errorf("algorithm stamp = %s/%s", meta.AlgorithmID, meta.AlgorithmVersion)
	}
	if generated.NextCursor == "" {
		t.Error("expected a continuation cursor")
	}
	if got := f.engine.Health(); got != fallback.StateHealthy {
		t.Errorf("Health() = %v, want healthy", got)
	}
}

func TestGenerateFeedValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(5)

	tests := []struct {
		name string
		req  feed.Request
	}{
		{name: "empty user", req: feed.Request{FeedType: "home"}},
		{name: "empty feed type", req: feed.Request{UserID: "u1"}},
		{name: "unknown feed type", req: feed.Request{UserID: "u1", FeedType: "trending"}},
		{name: "negative page size", req: feed.Request{UserID: "u1", FeedType: "home", PageSize: -1}},
		{name: "garbage cursor", req: feed.Request{UserID: "u1", FeedType: "home", Cursor: "not a cursor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generated, err := f.engine.GenerateFeed(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !feed.IsInvalidRequest(err) {
				t.Errorf("error %v is not an InvalidRequestError", err)
			}
			if generated != nil {
				t.Error("rejected request still produced a feed")
			}
		})
	}

	if f.supplier.calls != 0 {
		t.Errorf("supplier reached %d times by rejected requests", f.supplier.calls)
	}
}

func TestGenerateFeedDeterministic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(30)
	req := feed.Request{UserID: "det-user", FeedType: "home", PageSize: 20}

	first, err := f.engine.GenerateFeed(context.Background(), req)
	if err != nil {
		t.Fatalf("first GenerateFeed: %v", err)
	}
	second, err := f.engine.GenerateFeed(context.Background(), req)
	if err != nil {
		t.Fatalf("second GenerateFeed: %v", err)
	}

	if len(first.Items) != len(second.Items) {
		t.Fatalf("lengths differ: %d vs %d", len(first.Items), len(second.Items))
	}
	for i := range first.Items {
		a, b := first.Items[i], second.Items[i]
		if a.Item.ID != b.Item.ID {
			t.Errorf("position %d: %s vs %s", i, a.Item.ID, b.Item.ID)
		}
		if a.Score != b.Score {
			t.Errorf("position %d: score %v vs %v", i, a.Score, b.Score)
		}
		if a.Rank != b.Rank {
			t.Errorf("position %d: rank %d vs %d", i, a.Rank, b.Rank)
		}
	}
}

func TestGenerateFeedCursorPagination(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(30)

	seen := make(map[string]int)
	cursor := ""
	wantRank := 1
	pages := 0

	for {
		req := feed.Request{UserID: "u1", FeedType: "home", PageSize: 10, Cursor: cursor}
		generated, err := f.engine.GenerateFeed(context.Background(), req)
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		pages++

		for _, item := range generated.Items {
			seen[item.Item.ID]++
			if item.Rank != wantRank {
				t.Errorf("rank = %d, want %d", item.Rank, wantRank)
			}
			wantRank++
		}

		if generated.NextCursor == "" {
			break
		}
		cursor = generated.NextCursor
		if pages > 10 {
			t.Fatal("pagination never terminated")
		}
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(seen) != 30 {
		t.Errorf("distinct items = %d, want 30", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("item %s served %d times", id, count)
		}
	}
}

func TestGenerateFeedEmptyCandidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	generated, err := f.engine.GenerateFeed(context.Background(), homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}
	if len(generated.Items) != 0 {
		t.Errorf("items = %d, want 0", len(generated.Items))
	}
	if generated.Metadata.Degraded {
		t.Error("empty pool must not degrade the feed")
	}
	if generated.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", generated.NextCursor)
	}
	if got := f.engine.Health(); got != fallback.StateHealthy {
		t.Errorf("Health() = %v, want healthy", got)
	}
}

func TestGenerateFeedDropsFaultedItems(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	supplier := &stubSupplier{items: plainCandidates(10)}
	eng, err := New(Deps{
		Config:    cfg,
		Supplier:  supplier,
		Scorer:    &faultyScorer{real: scoring.New(), failIDs: map[string]bool{"c-003": true, "c-007": true}},
		Diversity: diversity.New(),
		Assigner:  experiment.NewAssigner(nil),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	generated, err := eng.GenerateFeed(context.Background(), homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}

	if generated.Metadata.Degraded {
		t.Error("partial scoring faults must not degrade the feed")
	}
	if generated.Metadata.DroppedItems != 2 {
		t.Errorf("DroppedItems = %d, want 2", generated.Metadata.DroppedItems)
	}
	if len(generated.Items) != 8 {
		t.Errorf("items = %d, want 8", len(generated.Items))
	}
	for _, item := range generated.Items {
		if item.Item.ID == "c-003" || item.Item.ID == "c-007" {
			t.Errorf("faulted item %s served", item.Item.ID)
		}
	}
}

func TestGenerateFeedDegradesWhenAllScoringFails(t *testing.T) {
	t.Parallel()

	failAll := make(map[string]bool)
	for _, item := range plainCandidates(5) {
		failAll[item.ID] = true
	}

	supplier := &stubSupplier{items: plainCandidates(5)}
	eng, err := New(Deps{
		Config:    testConfig(),
		Supplier:  supplier,
		Scorer:    &faultyScorer{real: scoring.New(), failIDs: failAll},
		Diversity: diversity.New(),
		Assigner:  experiment.NewAssigner(nil),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	generated, err := eng.GenerateFeed(context.Background(), homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}

	if !generated.Metadata.Degraded {
		t.Fatal("expected a degraded feed when every candidate faults")
	}
	if generated.Metadata.DegradedCause != string(feed.CauseScoring) {
		t.Errorf("cause = %q, want %q", generated.Metadata.DegradedCause, feed.CauseScoring)
	}
	if got := eng.Health(); got != fallback.StateDegraded {
		t.Errorf("Health() = %v, want degraded", got)
	}
	// The fetch succeeded before scoring collapsed, so the safe feed
	// still captured the pool.
	if len(generated.Items) == 0 {
		t.Error("degraded feed is empty despite a warm safe feed")
	}
}

func TestGenerateFeedFallbackActivationAndRecovery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(30)
	ctx := context.Background()

	healthy, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("healthy GenerateFeed: %v", err)
	}
	if healthy.Metadata.Degraded {
		t.Fatal("healthy feed marked degraded")
	}

	f.supplier.err = errors.New("supplier down")
	degraded, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("degraded GenerateFeed: %v", err)
	}
	if !degraded.Metadata.Degraded {
		t.Fatal("expected a degraded feed after an upstream failure")
	}
	if degraded.Metadata.DegradedCause != string(feed.CauseUpstream) {
		t.Errorf("cause = %q, want %q", degraded.Metadata.DegradedCause, feed.CauseUpstream)
	}
	if len(degraded.Items) == 0 {
		t.Error("degraded feed is empty despite a warm safe feed")
	}
	if got := f.engine.Health(); got != fallback.StateDegraded {
		t.Fatalf("Health() = %v, want degraded", got)
	}

	// While degraded the engine answers from the cache without touching
	// the supplier.
	callsBefore := f.supplier.calls
	if _, err := f.engine.GenerateFeed(ctx, homeRequest("u2")); err != nil {
		t.Fatalf("short-circuit GenerateFeed: %v", err)
	}
	if f.supplier.calls != callsBefore {
		t.Errorf("supplier reached while degraded: %d calls, want %d", f.supplier.calls, callsBefore)
	}

	// A failing probe keeps the state.
	f.supplier.pingErr = errors.New("still down")
	if err := f.engine.Probe(ctx); err == nil {
		t.Error("expected a probe error")
	}
	if got := f.engine.Health(); got != fallback.StateDegraded {
		t.Errorf("Health() after failed probe = %v, want degraded", got)
	}

	// Supplier comes back: probe moves to recovering, consecutive
	// successes complete the recovery.
	f.supplier.err = nil
	f.supplier.pingErr = nil
	if err := f.engine.Probe(ctx); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got := f.engine.Health(); got != fallback.StateRecovering {
		t.Fatalf("Health() after probe = %v, want recovering", got)
	}

	first, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("recovering GenerateFeed: %v", err)
	}
	if first.Metadata.Degraded {
		t.Error("recovering feed marked degraded")
	}
	if got := f.engine.Health(); got != fallback.StateRecovering {
		t.Errorf("Health() after one success = %v, want recovering", got)
	}

	if _, err := f.engine.GenerateFeed(ctx, homeRequest("u1")); err != nil {
		t.Fatalf("second recovering GenerateFeed: %v", err)
	}
	if got := f.engine.Health(); got != fallback.StateHealthy {
		t.Errorf("Health() after threshold = %v, want healthy", got)
	}
}

func TestGenerateFeedDegradedExcludesSensitive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	items := plainCandidates(5)
	items = append(items, feed.CandidateItem{
		ID:        "sensitive-item",
		AuthorID:  "author-x",
		CreatedAt: time.Now().Add(-time.Minute),
		BaseScore: 0.95,
		Sensitive: true,
	})
	f.supplier.items = items
	ctx := context.Background()

	healthy, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}
	found := false
	for _, item := range healthy.Items {
		if item.Item.ID == "sensitive-item" {
			found = true
		}
	}
	if !found {
		t.Error("full path should serve sensitive items")
	}

	f.supplier.err = errors.New("supplier down")
	degraded, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("degraded GenerateFeed: %v", err)
	}
	if len(degraded.Items) == 0 {
		t.Fatal("degraded feed is empty")
	}
	for _, item := range degraded.Items {
		if item.Item.ID == "sensitive-item" {
			t.Error("sensitive item served on the degraded path")
		}
	}
}

func TestGenerateFeedLoadShed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) {
		cfg.Feed.MaxGenerationsPerSecond = 0.001
		cfg.Feed.GenerationBurst = 1
	})
	f.supplier.items = plainCandidates(10)
	ctx := context.Background()

	first, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("first GenerateFeed: %v", err)
	}
	if first.Metadata.Degraded {
		t.Fatal("first request within burst marked degraded")
	}

	second, err := f.engine.GenerateFeed(ctx, homeRequest("u2"))
	if err != nil {
		t.Fatalf("second GenerateFeed: %v", err)
	}
	if !second.Metadata.Degraded {
		t.Fatal("expected load shedding to degrade the second request")
	}
	if second.Metadata.DegradedCause != string(feed.CauseExhaustion) {
		t.Errorf("cause = %q, want %q", second.Metadata.DegradedCause, feed.CauseExhaustion)
	}
	if len(second.Items) == 0 {
		t.Error("shed request served an empty feed despite a warm safe feed")
	}
}

func TestGenerateFeedPanicRecovery(t *testing.T) {
	t.Parallel()

	supplier := &stubSupplier{items: plainCandidates(5)}
	eng, err := New(Deps{
		Config:    testConfig(),
		Supplier:  supplier,
		Scorer:    panicScorer{},
		Diversity: diversity.New(),
		Assigner:  experiment.NewAssigner(nil),
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	generated, err := eng.GenerateFeed(context.Background(), homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed returned an error after a panic: %v", err)
	}
	if generated == nil {
		t.Fatal("GenerateFeed returned nil after a panic")
	}
	if !generated.Metadata.Degraded {
		t.Error("panic outcome not marked degraded")
	}
	if generated.Metadata.DegradedCause != string(feed.CausePanic) {
		t.Errorf("cause = %q, want %q", generated.Metadata.DegradedCause, feed.CausePanic)
	}
	if got := eng.Health(); got != fallback.StateDegraded {
		t.Errorf("Health() = %v, want degraded", got)
	}
}

func TestGenerateFeedCancellation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(5)
	f.supplier.delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	generated, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err == nil {
		t.Fatal("expected an error for a canceled caller")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if generated != nil {
		t.Error("canceled request still produced a feed")
	}
	if got := f.engine.Health(); got != fallback.StateHealthy {
		t.Errorf("cancellation degraded the engine: %v", got)
	}
}

func TestGenerateFeedAuthorCaps(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	now := time.Now()
	items := make([]feed.CandidateItem, 0, 8)
	for i := 0; i < 5; i++ {
		items = append(items, feed.CandidateItem{
			ID:        fmt.Sprintf("prolific-%d", i),
			AuthorID:  "prolific",
			CreatedAt: now.Add(-time.Minute),
			BaseScore: 1 - float64(i)*0.02,
		})
	}
	for i := 0; i < 3; i++ {
		items = append(items, feed.CandidateItem{
			ID:        fmt.Sprintf("other-%d", i),
			AuthorID:  fmt.Sprintf("author-%d", i),
			CreatedAt: now.Add(-time.Minute),
			BaseScore: 0.5 - float64(i)*0.02,
		})
	}
	f.supplier.items = items

	generated, err := f.engine.GenerateFeed(context.Background(), feed.Request{UserID: "u1", FeedType: "home", PageSize: 6})
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}
	if len(generated.Items) != 6 {
		t.Fatalf("items = %d, want 6", len(generated.Items))
	}

	prolific := 0
	for _, item := range generated.Items {
		if item.Item.AuthorID == "prolific" {
			prolific++
		}
	}
	if prolific != 3 {
		t.Errorf("prolific author on page = %d, want exactly the cap of 3", prolific)
	}
}

func TestGenerateFeedVariantOverridesRanking(t *testing.T) {
	t.Parallel()

	// A weak recency baseline lets popularity carry the aged item for
	// control users, while the variant's 0.7 override flips the order.
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Feed.RecencyWeight = 0.2
	})
	f.assigner.Swap(algoTestSnapshot())

	now := time.Now()
	f.supplier.items = []feed.CandidateItem{
		{ID: "fresh", AuthorID: "a1", CreatedAt: now.Add(-30 * time.Minute), BaseScore: 0},
		{ID: "aged", AuthorID: "a2", CreatedAt: now.Add(-80 * time.Hour), BaseScore: 1},
	}

	highUser := findUserInArm(t, "algo_test", true)
	controlUser := findUserInArm(t, "algo_test", false)
	ctx := context.Background()

	high, err := f.engine.GenerateFeed(ctx, homeRequest(highUser))
	if err != nil {
		t.Fatalf("high-recency GenerateFeed: %v", err)
	}
	if high.Items[0].Item.ID != "fresh" {
		t.Errorf("high_recency top item = %s, want fresh", high.Items[0].Item.ID)
	}
	exp := high.Metadata.Experiment
	if exp == nil {
		t.Fatal("assignment missing from metadata")
	}
	if exp.ExperimentID != "algo_test" || exp.VariantID != "high_recency" || exp.IsControl {
		t.Errorf("assignment = %+v, want high_recency of algo_test", exp)
	}

	control, err := f.engine.GenerateFeed(ctx, homeRequest(controlUser))
	if err != nil {
		t.Fatalf("control GenerateFeed: %v", err)
	}
	if control.Items[0].Item.ID != "aged" {
		t.Errorf("control top item = %s, want aged", control.Items[0].Item.ID)
	}
	cexp := control.Metadata.Experiment
	if cexp == nil || !cexp.IsControl || cexp.VariantID != "control" {
		t.Errorf("control assignment = %+v", cexp)
	}
}

func TestGenerateFeedForcedAssignment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) {
		cfg.Feed.RecencyWeight = 0.2
	})
	f.assigner.Swap(algoTestSnapshot())

	now := time.Now()
	f.supplier.items = []feed.CandidateItem{
		{ID: "fresh", AuthorID: "a1", CreatedAt: now.Add(-30 * time.Minute), BaseScore: 0},
		{ID: "aged", AuthorID: "a2", CreatedAt: now.Add(-80 * time.Hour), BaseScore: 1},
	}

	controlUser := findUserInArm(t, "algo_test", false)
	if err := f.assigner.Force(controlUser, "algo_test", "high_recency"); err != nil {
		t.Fatalf("Force: %v", err)
	}

	generated, err := f.engine.GenerateFeed(context.Background(), homeRequest(controlUser))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}
	exp := generated.Metadata.Experiment
	if exp == nil || !exp.Forced || exp.VariantID != "high_recency" {
		t.Fatalf("assignment = %+v, want a forced high_recency", exp)
	}
	if generated.Items[0].Item.ID != "fresh" {
		t.Errorf("top item = %s, want fresh under the forced variant", generated.Items[0].Item.ID)
	}
}

func TestGenerateFeedDegradedSkipsExperiments(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.assigner.Swap(algoTestSnapshot())
	f.supplier.items = plainCandidates(10)
	ctx := context.Background()

	if _, err := f.engine.GenerateFeed(ctx, homeRequest("u1")); err != nil {
		t.Fatalf("warm GenerateFeed: %v", err)
	}

	f.supplier.err = errors.New("supplier down")
	degraded, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("degraded GenerateFeed: %v", err)
	}
	if !degraded.Metadata.Degraded {
		t.Fatal("expected a degraded feed")
	}
	if degraded.Metadata.Experiment != nil {
		t.Errorf("degraded feed carries an assignment: %+v", degraded.Metadata.Experiment)
	}
}

func TestExperimentAssignmentMatchesGeneration(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.assigner.Swap(algoTestSnapshot())
	f.supplier.items = plainCandidates(5)

	uid := findUserInArm(t, "algo_test", true)

	peeked := f.engine.ExperimentAssignment(uid, "home")
	if peeked == nil {
		t.Fatal("Peek returned nil for an always-on experiment")
	}

	generated, err := f.engine.GenerateFeed(context.Background(), homeRequest(uid))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}
	exp := generated.Metadata.Experiment
	if exp == nil || exp.VariantID != peeked.VariantID || exp.ExperimentID != peeked.ExperimentID {
		t.Errorf("Peek %+v disagrees with generation %+v", peeked, exp)
	}
}

func TestWarmPrimesSafeFeed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(10)
	ctx := context.Background()

	if err := f.engine.Warm(ctx); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	// Degrade without any prior generation; the warmed cache must carry
	// the response.
	f.engine.Controller().ReportFailure(feed.CauseUpstream)
	generated, err := f.engine.GenerateFeed(ctx, homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}
	if !generated.Metadata.Degraded {
		t.Fatal("expected a degraded feed")
	}
	if len(generated.Items) != 10 {
		t.Errorf("items = %d, want 10 from the warmed cache", len(generated.Items))
	}
}

func TestProbeSkipsWhenHealthy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if err := f.engine.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if f.supplier.pings != 0 {
		t.Errorf("pings = %d, want 0 while healthy", f.supplier.pings)
	}
}

func TestGenerateFeedDeduplicatesCandidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	now := time.Now()
	f.supplier.items = []feed.CandidateItem{
		{ID: "a", AuthorID: "x1", CreatedAt: now.Add(-time.Minute), BaseScore: 0.9},
		{ID: "dup", AuthorID: "x2", CreatedAt: now.Add(-time.Minute), BaseScore: 0.8},
		{ID: "dup", AuthorID: "x2", CreatedAt: now.Add(-time.Minute), BaseScore: 0.8},
		{ID: "b", AuthorID: "x3", CreatedAt: now.Add(-time.Minute), BaseScore: 0.7},
	}

	generated, err := f.engine.GenerateFeed(context.Background(), homeRequest("u1"))
	if err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}

	if len(generated.Items) != 3 {
		t.Fatalf("items = %d, want 3 after deduplication", len(generated.Items))
	}
	dupCount := 0
	for _, item := range generated.Items {
		if item.Item.ID == "dup" {
			dupCount++
		}
	}
	if dupCount != 1 {
		t.Errorf("duplicate item served %d times, want 1", dupCount)
	}
}

func TestEventSinkReceivesOutcomes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.supplier.items = plainCandidates(5)
	ctx := context.Background()

	if _, err := f.engine.GenerateFeed(ctx, homeRequest("u1")); err != nil {
		t.Fatalf("GenerateFeed: %v", err)
	}
	if len(f.sink.feeds) != 1 {
		t.Fatalf("events = %d, want 1", len(f.sink.feeds))
	}
	if f.sink.feeds[0].Metadata.Degraded {
		t.Error("healthy outcome reported as degraded")
	}
	if f.sink.feeds[0].UserID != "u1" {
		t.Errorf("event user = %s, want u1", f.sink.feeds[0].UserID)
	}

	f.supplier.err = errors.New("supplier down")
	if _, err := f.engine.GenerateFeed(ctx, homeRequest("u1")); err != nil {
		t.Fatalf("degraded GenerateFeed: %v", err)
	}
	if len(f.sink.feeds) != 2 {
		t.Fatalf("events = %d, want 2", len(f.sink.feeds))
	}
	if !f.sink.feeds[1].Metadata.Degraded {
		t.Error("degraded outcome reported as healthy")
	}
}
