// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package feed

import (
	"context"
	"errors"
	"fmt"
)

// Failure taxonomy for feed generation. Only request validation errors
// surface to callers; everything else is absorbed at the fallback
// boundary and converted into a degraded feed.
var (
	// ErrUpstreamUnavailable marks the candidate or configuration store
	// unreachable or timed out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrScoringFault marks a failure scoring a single item. The item is
	// dropped; generation continues.
	ErrScoringFault = errors.New("scoring fault")

	// ErrResourceExhaustion marks load beyond the engine's capacity.
	ErrResourceExhaustion = errors.New("resource exhaustion")

	// ErrConfiguration marks malformed experiment or policy data. Logged
	// and ignored; generation continues with defaults.
	ErrConfiguration = errors.New("configuration error")
)

// Cause labels a failure class for metrics and degraded-feed metadata.
type Cause string

const (
	// CauseUpstream is an unreachable or timed-out dependency.
	CauseUpstream Cause = "upstream_unavailable"
	// CauseScoring is a per-item scoring failure.
	CauseScoring Cause = "scoring_fault"
	// CauseExhaustion is engine overload.
	CauseExhaustion Cause = "resource_exhaustion"
	// CauseConfiguration is malformed configuration data.
	CauseConfiguration Cause = "configuration"
	// CausePanic is a recovered panic on the generation path.
	CausePanic Cause = "panic"
)

// ClassifyFailure maps an error to its failure class. Unrecognized errors
// are treated conservatively as upstream failures, since misclassifying
// an outage as benign is worse than the reverse.
func ClassifyFailure(err error) Cause {
	switch {
	case errors.Is(err, ErrConfiguration):
		return CauseConfiguration
	case errors.Is(err, ErrScoringFault):
		return CauseScoring
	case errors.Is(err, ErrResourceExhaustion):
		return CauseExhaustion
	case errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return CauseUpstream
	default:
		return CauseUpstream
	}
}

// InvalidRequestError rejects a request before generation starts. It is
// the only error class feed generation surfaces to callers.
type InvalidRequestError struct {
	// Field is the offending request field.
	Field string

	// Reason says what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// IsInvalidRequest reports whether err is a request validation error.
func IsInvalidRequest(err error) bool {
	var ire *InvalidRequestError
	return errors.As(err, &ire)
}
