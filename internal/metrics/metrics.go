// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed Generation Metrics
	FeedGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_generation_duration_seconds",
			Help:    "Duration of feed generation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"feed_type", "degraded"},
	)

	FeedGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_generations_total",
			Help: "Total number of feed generations",
		},
		[]string{"feed_type", "result"}, // result: "ok", "degraded", "rejected"
	)

	FeedItemsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_items_returned",
			Help:    "Number of items returned per generated feed",
			Buckets: []float64{1, 5, 10, 20, 50, 100},
		},
		[]string{"feed_type"},
	)

	CandidateFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "candidate_fetch_duration_seconds",
			Help:    "Duration of candidate retrieval from the content supplier",
			Buckets: prometheus.DefBuckets,
		},
	)

	CandidateFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidate_fetch_errors_total",
			Help: "Total number of candidate retrieval failures",
		},
		[]string{"error_type"}, // "timeout", "unavailable", "rejected"
	)

	ScoringFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_faults_total",
			Help: "Total number of items dropped due to scoring faults",
		},
	)

	// Diversity Metrics
	DiversityDeferrals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diversity_deferrals_total",
			Help: "Total number of items deferred by diversity caps in the first pass",
		},
	)

	DiversityRelaxations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diversity_relaxations_total",
			Help: "Times the candidate pool could not satisfy diversity caps and best-effort ordering was served",
		},
	)

	FilterBubbleInterventions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filter_bubble_interventions_total",
			Help: "Times discovery slots were reserved for out-of-profile candidates",
		},
	)

	// Experiment Metrics
	ExperimentAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiment_assignments_total",
			Help: "Total number of experiment variant assignments",
		},
		[]string{"experiment", "variant"},
	)

	ExperimentExclusions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiment_exclusions_total",
			Help: "Total number of users excluded by the inclusion hash",
		},
		[]string{"experiment"},
	)

	ExperimentConfigErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "experiment_config_errors_total",
			Help: "Total number of malformed experiment definitions or variant parameters ignored",
		},
	)

	ExperimentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "experiments_active",
			Help: "Number of experiments in the current definition snapshot",
		},
	)

	SnapshotRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiment_snapshot_refreshes_total",
			Help: "Total number of experiment snapshot refresh attempts",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Fallback Metrics
	FallbackState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fallback_state",
			Help: "Fallback controller state (0=healthy, 1=recovering, 2=degraded)",
		},
	)

	FallbackActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_activations_total",
			Help: "Total number of degraded feeds served, by cause",
		},
		[]string{"cause"},
	)

	FallbackTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_state_transitions_total",
			Help: "Total number of fallback controller state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	SafeFeedItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "safe_feed_items",
			Help: "Number of items currently held in the safe-feed cache",
		},
	)

	// Circuit Breaker Metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breaker_state",
			Help: "State of a named circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_requests_total",
			Help: "Requests seen by a circuit breaker, by outcome",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_state_transitions_total",
			Help: "Circuit breaker moves between closed, half-open and open",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Stream Metrics
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_emitted_total",
			Help: "Total number of events handed to the emitter",
		},
		[]string{"topic"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_events_dropped_total",
			Help: "Total number of events dropped because the emitter queue was full",
		},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_event_publish_errors_total",
			Help: "Total number of event publish failures",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_consumed_total",
			Help: "Total number of events processed by the event router",
		},
		[]string{"topic"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)
)

// RecordFeedGeneration records the outcome of one feed generation.
func RecordFeedGeneration(feedType string, degraded bool, duration time.Duration, itemCount int) {
	degradedLabel := "false"
	result := "ok"
	if degraded {
		degradedLabel = "true"
		result = "degraded"
	}

	FeedGenerationDuration.WithLabelValues(feedType, degradedLabel).Observe(duration.Seconds())
	FeedGenerationsTotal.WithLabelValues(feedType, result).Inc()
	FeedItemsReturned.WithLabelValues(feedType).Observe(float64(itemCount))
}

// RecordRejectedRequest records a request rejected by validation.
func RecordRejectedRequest(feedType string) {
	FeedGenerationsTotal.WithLabelValues(feedType, "rejected").Inc()
}

// RecordCandidateFetch records a candidate retrieval attempt.
func RecordCandidateFetch(duration time.Duration, errorType string) {
	CandidateFetchDuration.Observe(duration.Seconds())
	if errorType != "" {
		CandidateFetchErrors.WithLabelValues(errorType).Inc()
	}
}

// RecordAssignment records a variant assignment.
func RecordAssignment(experimentID, variantID string) {
	ExperimentAssignments.WithLabelValues(experimentID, variantID).Inc()
}

// RecordExclusion records an inclusion-hash exclusion.
func RecordExclusion(experimentID string) {
	ExperimentExclusions.WithLabelValues(experimentID).Inc()
}

// RecordFallbackActivation records one degraded feed served.
func RecordFallbackActivation(cause string) {
	FallbackActivations.WithLabelValues(cause).Inc()
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
