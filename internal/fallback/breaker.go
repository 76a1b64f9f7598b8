// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package fallback

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/feedloom/feedloom/internal/config"
	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/logging"
	"github.com/feedloom/feedloom/internal/metrics"
)

const breakerName = "candidate-supplier"

// Breaker guards candidate retrieval with a circuit breaker. A tripped
// breaker rejects calls without touching the supplier; the engine treats
// the rejection as an upstream failure and serves the safe feed.
//
// The breaker uses real time for its interval and timeout windows, so
// recovery timing is production behavior, not something tests should
// try to pin down. Tests exercise trip and rejection, not reclosure.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[[]feed.CandidateItem]
}

// NewBreaker builds a Breaker from the fallback configuration.
func NewBreaker(cfg config.FallbackConfig) *Breaker {
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]feed.CandidateItem](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := failureRatio >= cfg.BreakerFailureThreshold
			if trip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_ratio", failureRatio).
					Msg("candidate supplier breaker opening")
			}
			return trip
		},

		// A caller walking away is not a supplier failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := breakerStateString(from), breakerStateString(to)
			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("circuit breaker state transition")
			metrics.BreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.BreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker{cb: cb}
}

// Fetch retrieves candidates through the breaker.
func (b *Breaker) Fetch(ctx context.Context, supplier feed.CandidateSupplier, userID, feedType string, limit int) ([]feed.CandidateItem, error) {
	items, err := b.cb.Execute(func() ([]feed.CandidateItem, error) {
		return supplier.ListCandidates(ctx, userID, feedType, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.BreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		} else {
			metrics.BreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		}
		return nil, err
	}
	metrics.BreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return items, nil
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
