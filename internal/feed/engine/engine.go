// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/feedloom/feedloom/internal/config"
	"github.com/feedloom/feedloom/internal/experiment"
	"github.com/feedloom/feedloom/internal/fallback"
	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/metrics"
)

// Deps are the collaborators an engine is built from. Config, Supplier,
// Scorer, Diversity, and Assigner are required; Profiles and Events may
// be nil.
type Deps struct {
	Config    *config.Config
	Supplier  feed.CandidateSupplier
	Profiles  feed.ProfileSource
	Scorer    feed.Scorer
	Diversity feed.DiversityEnforcer
	Assigner  *experiment.Assigner
	Events    feed.EventSink
	Logger    zerolog.Logger
}

// Engine generates personalized feeds. It is safe for concurrent use.
type Engine struct {
	cfg       *config.Config
	supplier  feed.CandidateSupplier
	resolver  *feed.Resolver
	scorer    feed.Scorer
	diversity feed.DiversityEnforcer
	assigner  *experiment.Assigner
	events    feed.EventSink

	controller *fallback.Controller
	breaker    *fallback.Breaker
	safe       *fallback.SafeFeed
	assembler  *Assembler

	// limiter sheds full-path generations beyond the configured rate.
	// Nil when load shedding is disabled.
	limiter *rate.Limiter

	logger zerolog.Logger
}

// New creates an engine from its dependencies.
//
//nolint:gocritic // logger inside deps passed by value is acceptable for zerolog
func New(deps Deps) (*Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Supplier == nil {
		return nil, errors.New("candidate supplier is required")
	}
	if deps.Scorer == nil {
		return nil, errors.New("scorer is required")
	}
	if deps.Diversity == nil {
		return nil, errors.New("diversity enforcer is required")
	}
	if deps.Assigner == nil {
		return nil, errors.New("experiment assigner is required")
	}

	var limiter *rate.Limiter
	if deps.Config.Feed.MaxGenerationsPerSecond > 0 {
		burst := deps.Config.Feed.GenerationBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(deps.Config.Feed.MaxGenerationsPerSecond), burst)
	}

	return &Engine{
		cfg:        deps.Config,
		supplier:   deps.Supplier,
		resolver:   feed.NewResolver(deps.Profiles),
		scorer:     deps.Scorer,
		diversity:  deps.Diversity,
		assigner:   deps.Assigner,
		events:     deps.Events,
		controller: fallback.NewController(deps.Config.Fallback.RecoveryThreshold),
		breaker:    fallback.NewBreaker(deps.Config.Fallback),
		safe:       fallback.NewSafeFeed(deps.Config.Fallback.SafeFeedCapacity),
		assembler:  NewAssembler(deps.Config.API.DefaultPageSize, deps.Config.API.MaxPageSize),
		limiter:    limiter,
		logger:     deps.Logger.With().Str("component", "engine").Logger(),
	}, nil
}

// GenerateFeed produces one feed page. The only errors it returns are
// request validation failures and caller cancellation; every downstream
// failure degrades to the safe feed instead.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) GenerateFeed(ctx context.Context, req feed.Request) (generated *feed.GeneratedFeed, err error) {
	start := time.Now()

	cursor, verr := e.validateRequest(req)
	if verr != nil {
		metrics.RecordRejectedRequest(req.FeedType)
		return nil, verr
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic_value", r).
				Str("user_id", req.UserID).
				Str("feed_type", req.FeedType).
				Msg("feed generation panicked")
			e.controller.ReportFailure(feed.CausePanic)
			generated = e.serveDegraded(req, cursor, feed.CausePanic, start)
			err = nil
		}
	}()

	logger := e.requestLogger(req)
	logger.Debug().Msg("generating feed")

	user := e.resolver.Resolve(req.UserID, req.Context)

	if e.controller.Degraded() {
		return e.serveDegraded(req, cursor, e.controller.Cause(), start), nil
	}

	if e.limiter != nil && !e.limiter.Allow() {
		e.controller.ReportFailure(feed.CauseExhaustion)
		logger.Warn().Msg("shedding load: generation rate exceeded")
		return e.serveDegraded(req, cursor, feed.CauseExhaustion, start), nil
	}

	candidates, ferr := e.fetchCandidates(ctx, req)
	if ferr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("feed generation canceled: %w", ctx.Err())
		}
		cause := feed.ClassifyFailure(ferr)
		e.controller.ReportFailure(cause)
		logger.Warn().Err(ferr).Str("cause", string(cause)).Msg("candidate retrieval failed")
		return e.serveDegraded(req, cursor, cause, start), nil
	}

	if len(candidates) > 0 {
		e.safe.Update(req.FeedType, candidates)
	}

	assignment := e.assigner.Assign(req.UserID, req.FeedType)
	weights, policy := e.resolveParameters(assignment)

	scored, dropped := e.scoreCandidates(candidates, user, weights, logger)
	if len(candidates) > 0 && len(scored) == 0 {
		e.controller.ReportFailure(feed.CauseScoring)
		logger.Warn().Int("candidates", len(candidates)).Msg("every candidate failed scoring")
		return e.serveDegraded(req, cursor, feed.CauseScoring, start), nil
	}

	ranked := e.rank(scored)
	diversified, report := e.diversity.Enforce(ranked, user, e.assembler.maxPageSize, policy)
	e.recordDiversity(report, logger)

	generated = e.assembler.Assemble(req, cursor, diversified, feed.FeedMetadata{
		CandidateCount: len(candidates),
		DroppedItems:   dropped,
		Experiment:     assignment,
	}, start)

	e.controller.ReportSuccess()
	metrics.RecordFeedGeneration(req.FeedType, false, time.Since(start), len(generated.Items))
	e.emit(generated)

	logger.Debug().
		Int("candidates", len(candidates)).
		Int("returned", len(generated.Items)).
		Int("dropped", dropped).
		Int64("duration_ms", generated.Metadata.DurationMS).
		Msg("feed generated")

	return generated, nil
}

// Probe checks supplier health while degraded. A successful probe moves
// the controller into recovery; subsequent full-path successes complete
// it.
func (e *Engine) Probe(ctx context.Context) error {
	if !e.controller.Degraded() {
		return nil
	}
	if err := e.supplier.Ping(ctx); err != nil {
		e.logger.Debug().Err(err).Msg("recovery probe failed")
		return fmt.Errorf("probe supplier: %w", err)
	}
	e.controller.ReportProbeSuccess()
	e.logger.Info().Msg("recovery probe succeeded")
	return nil
}

// Warm primes the safe-feed cache for every configured feed type so
// degraded requests have content before the first successful
// generation.
func (e *Engine) Warm(ctx context.Context) error {
	for _, ft := range e.cfg.Feed.FeedTypes {
		candidates, err := e.supplier.ListCandidates(ctx, "", ft, e.cfg.Fallback.SafeFeedCapacity)
		if err != nil {
			return fmt.Errorf("warm safe feed for %s: %w", ft, err)
		}
		e.safe.Update(ft, candidates)
	}
	return nil
}

// Health reports the current fallback state.
func (e *Engine) Health() fallback.State {
	return e.controller.State()
}

// SafeFeedLen reports how many safe-feed items are cached for a feed
// type.
func (e *Engine) SafeFeedLen(feedType string) int {
	return e.safe.Len(feedType)
}

// Controller exposes the fallback controller for supervision wiring.
func (e *Engine) Controller() *fallback.Controller {
	return e.controller
}

// Assigner exposes the experiment assigner for the API layer.
func (e *Engine) Assigner() *experiment.Assigner {
	return e.assigner
}

// ExperimentAssignment reports the variant a user would receive without
// recording an assignment or emitting events.
func (e *Engine) ExperimentAssignment(userID, feedType string) *experiment.AssignmentResult {
	return e.assigner.Peek(userID, feedType)
}

// validateRequest rejects malformed requests and decodes the cursor.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) validateRequest(req feed.Request) (*feed.Cursor, error) {
	if req.UserID == "" {
		return nil, &feed.InvalidRequestError{Field: "user_id", Reason: "must not be empty"}
	}
	if req.FeedType == "" {
		return nil, &feed.InvalidRequestError{Field: "feed_type", Reason: "must not be empty"}
	}
	if !e.cfg.KnownFeedType(req.FeedType) {
		return nil, &feed.InvalidRequestError{Field: "feed_type", Reason: fmt.Sprintf("unknown feed type %q", req.FeedType)}
	}
	if req.PageSize < 0 {
		return nil, &feed.InvalidRequestError{Field: "page_size", Reason: "must not be negative"}
	}
	if req.Cursor == "" {
		return nil, nil
	}
	cursor, err := feed.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, &feed.InvalidRequestError{Field: "cursor", Reason: err.Error()}
	}
	return cursor, nil
}

// fetchCandidates retrieves candidates through the circuit breaker
// under the configured timeout.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) fetchCandidates(ctx context.Context, req feed.Request) ([]feed.CandidateItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.Feed.CandidateTimeout)
	defer cancel()

	fetchStart := time.Now()
	candidates, err := e.breaker.Fetch(fetchCtx, e.supplier, req.UserID, req.FeedType, e.cfg.Feed.MaxCandidates)
	if err != nil {
		metrics.RecordCandidateFetch(time.Since(fetchStart), string(feed.ClassifyFailure(err)))
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	metrics.RecordCandidateFetch(time.Since(fetchStart), "")
	return candidates, nil
}

// resolveParameters applies variant overrides field by field onto the
// configured baselines.
func (e *Engine) resolveParameters(assignment *experiment.AssignmentResult) (feed.Weights, feed.DiversityPolicy) {
	weights := feed.Weights{
		Recency:    e.cfg.Feed.RecencyWeight,
		Popularity: e.cfg.Feed.PopularityWeight,
		Relevance:  e.cfg.Feed.RelevanceWeight,
	}
	policy := feed.DiversityPolicy{
		MaxPerAuthor:              e.cfg.Diversity.MaxPerAuthor,
		MaxTopicShare:             e.cfg.Diversity.MaxTopicShare,
		MinFeedSize:               e.cfg.Diversity.MinFeedSize,
		BubbleTopN:                e.cfg.Diversity.BubbleTopN,
		BubbleTopK:                e.cfg.Diversity.BubbleTopK,
		DiscoveryRatio:            e.cfg.Diversity.DiscoveryRatio,
		DiscoveryQualityThreshold: e.cfg.Diversity.DiscoveryQualityThreshold,
	}
	if assignment == nil {
		return weights, policy
	}

	p := assignment.Params
	if p.RecencyWeight != nil {
		weights.Recency = *p.RecencyWeight
	}
	if p.PopularityWeight != nil {
		weights.Popularity = *p.PopularityWeight
	}
	if p.RelevanceWeight != nil {
		weights.Relevance = *p.RelevanceWeight
	}
	if p.MaxPerAuthor != nil {
		policy.MaxPerAuthor = *p.MaxPerAuthor
	}
	if p.MaxTopicShare != nil {
		policy.MaxTopicShare = *p.MaxTopicShare
	}
	if p.DiscoveryRatio != nil {
		policy.DiscoveryRatio = *p.DiscoveryRatio
	}
	return weights, policy
}

// scoreCandidates scores every candidate, deduplicating by item ID and
// dropping items whose scoring faults.
func (e *Engine) scoreCandidates(candidates []feed.CandidateItem, user *feed.UserContext, weights feed.Weights, logger zerolog.Logger) ([]feed.ScoredItem, int) {
	scored := make([]feed.ScoredItem, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	dropped := 0

	for i := range candidates {
		item := &candidates[i]
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		breakdown, err := e.scorer.Score(item, user, weights)
		if err != nil {
			dropped++
			metrics.ScoringFaults.Inc()
			logger.Warn().Err(err).Str("item_id", item.ID).Msg("dropping item after scoring fault")
			continue
		}
		scored = append(scored, feed.ScoredItem{
			Item:      *item,
			Score:     breakdown.Total(),
			Breakdown: breakdown,
		})
	}
	return scored, dropped
}

// rank orders items by score descending with item ID as a deterministic
// tiebreak.
func (e *Engine) rank(scored []feed.ScoredItem) []feed.ScoredItem {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.ID < scored[j].Item.ID
	})
	return scored
}

// recordDiversity pushes enforcement outcomes into metrics and logs.
func (e *Engine) recordDiversity(report feed.DiversityReport, logger zerolog.Logger) {
	if report.Deferred > 0 {
		metrics.DiversityDeferrals.Add(float64(report.Deferred))
	}
	if report.Relaxed {
		metrics.DiversityRelaxations.Inc()
		logger.Info().
			Int("readmitted", report.Readmitted).
			Msg("diversity caps relaxed to fill the feed")
	}
	if report.BubbleDetected {
		metrics.FilterBubbleInterventions.Inc()
		logger.Info().
			Int("discovery_picks", report.DiscoveryPicks).
			Msg("filter bubble detected")
	}
}

// serveDegraded answers from the safe-feed cache. It never fails; an
// empty cache yields an empty degraded feed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) serveDegraded(req feed.Request, cursor *feed.Cursor, cause feed.Cause, start time.Time) *feed.GeneratedFeed {
	offset := 0
	if cursor != nil {
		offset = cursor.Rank
	}
	want := offset + e.assembler.PageSize(req.PageSize)

	items := e.safe.Items(req.FeedType, want)
	ranked := make([]feed.ScoredItem, len(items))
	for i := range items {
		ranked[i] = feed.ScoredItem{
			Item:      items[i],
			Score:     items[i].BaseScore,
			Breakdown: feed.ScoreBreakdown{Popularity: items[i].BaseScore},
		}
	}

	generated := e.assembler.Assemble(req, cursor, ranked, feed.FeedMetadata{
		CandidateCount: len(items),
		Degraded:       true,
		DegradedCause:  string(cause),
	}, start)

	metrics.RecordFallbackActivation(string(cause))
	metrics.RecordFeedGeneration(req.FeedType, true, time.Since(start), len(generated.Items))

	elapsed := time.Since(start)
	e.logger.Warn().
		Str("user_id", req.UserID).
		Str("feed_type", req.FeedType).
		Str("cause", string(cause)).
		Int("items", len(generated.Items)).
		Dur("elapsed", elapsed).
		Msg("served degraded feed")
	if elapsed > e.cfg.Fallback.LatencyCeiling {
		e.logger.Error().
			Dur("elapsed", elapsed).
			Dur("ceiling", e.cfg.Fallback.LatencyCeiling).
			Msg("degraded response exceeded the latency ceiling")
	}

	e.emit(generated)
	return generated
}

// requestLogger returns a logger annotated with the request identity.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) requestLogger(req feed.Request) zerolog.Logger {
	return e.logger.With().
		Str("user_id", req.UserID).
		Str("feed_type", req.FeedType).
		Logger()
}

// emit hands the outcome to the event sink, if one is wired.
func (e *Engine) emit(generated *feed.GeneratedFeed) {
	if e.events == nil {
		return
	}
	e.events.FeedGenerated(generated)
}
