// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package fallback

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/logging"
	"github.com/feedloom/feedloom/internal/metrics"
)

// State is the health of the full generation path.
type State int32

const (
	// StateHealthy serves every request through the full path.
	StateHealthy State = 0

	// StateRecovering serves the full path while counting consecutive
	// successes toward StateHealthy.
	StateRecovering State = 1

	// StateDegraded serves the safe feed until a probe succeeds.
	StateDegraded State = 2
)

// String returns the state name used in logs, metrics and the API.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateRecovering:
		return "recovering"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Controller is the fallback health state machine. The zero value is not
// usable; construct with NewController.
//
// State reads and transitions are atomic. Two generations racing to
// report a failure produce one transition; the loser's compare-and-swap
// fails and it moves on.
type Controller struct {
	state     atomic.Int32
	successes atomic.Int32
	lastCause atomic.Value

	recoveryThreshold int32
	logger            zerolog.Logger
}

// NewController returns a healthy Controller. recoveryThreshold is how
// many consecutive successful full-path generations RECOVERING needs
// before returning to HEALTHY; values below 1 are raised to 1.
func NewController(recoveryThreshold int) *Controller {
	if recoveryThreshold < 1 {
		recoveryThreshold = 1
	}
	c := &Controller{
		recoveryThreshold: int32(recoveryThreshold),
		logger:            logging.WithComponent("fallback"),
	}
	metrics.FallbackState.Set(float64(StateHealthy))
	return c
}

// State returns the current health state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Degraded reports whether requests should be served from the safe feed.
func (c *Controller) Degraded() bool {
	return c.State() == StateDegraded
}

// Cause returns the failure class behind the most recent degradation.
// Meaningful only while degraded or recovering.
func (c *Controller) Cause() feed.Cause {
	if v, ok := c.lastCause.Load().(feed.Cause); ok {
		return v
	}
	return feed.CauseUpstream
}

// ReportFailure records an upstream failure. HEALTHY and RECOVERING both
// degrade; an already degraded controller stays put.
func (c *Controller) ReportFailure(cause feed.Cause) {
	c.lastCause.Store(cause)
	c.successes.Store(0)
	for {
		cur := c.State()
		if cur == StateDegraded {
			return
		}
		if c.transition(cur, StateDegraded) {
			c.logger.Warn().
				Str("cause", string(cause)).
				Str("from", cur.String()).
				Msg("upstream failure; entering degraded state")
			return
		}
	}
}

// ReportSuccess records a successful full-path generation. Only
// RECOVERING counts successes; after the configured threshold the
// controller returns to HEALTHY.
func (c *Controller) ReportSuccess() {
	if c.State() != StateRecovering {
		return
	}
	n := c.successes.Add(1)
	if n < c.recoveryThreshold {
		return
	}
	if c.transition(StateRecovering, StateHealthy) {
		c.successes.Store(0)
		c.logger.Info().
			Int32("consecutive_successes", n).
			Msg("recovery complete; back to healthy")
	}
}

// ReportProbeSuccess records a successful supplier health probe, moving
// DEGRADED to RECOVERING. Probes in any other state are ignored.
func (c *Controller) ReportProbeSuccess() {
	if c.transition(StateDegraded, StateRecovering) {
		c.successes.Store(0)
		c.logger.Info().Msg("supplier probe succeeded; entering recovery")
	}
}

func (c *Controller) transition(from, to State) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	metrics.FallbackState.Set(float64(to))
	metrics.FallbackTransitions.WithLabelValues(from.String(), to.String()).Inc()
	return true
}
