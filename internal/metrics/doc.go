// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package metrics provides Prometheus metrics collection and export.

All collectors are registered at package load via promauto and exposed at the
/metrics endpoint in Prometheus text format.

# Available Metrics

Feed generation:
  - feed_generation_duration_seconds: Generation latency (histogram)
    Labels: feed_type, degraded
  - feed_generations_total: Generations by outcome (counter)
    Labels: feed_type, result (ok, degraded, rejected)
  - feed_items_returned: Items per feed (histogram)
  - candidate_fetch_duration_seconds: Supplier latency (histogram)
  - candidate_fetch_errors_total: Supplier failures (counter)
    Labels: error_type (timeout, unavailable, rejected)
  - scoring_faults_total: Items dropped by scoring faults (counter)

Diversity:
  - diversity_deferrals_total, diversity_relaxations_total,
    filter_bubble_interventions_total

Experiments:
  - experiment_assignments_total (labels: experiment, variant)
  - experiment_exclusions_total (labels: experiment)
  - experiment_config_errors_total, experiments_active,
    experiment_snapshot_refreshes_total

Fallback and circuit breaker:
  - fallback_state: 0=healthy, 1=recovering, 2=degraded (gauge)
  - fallback_activations_total (labels: cause)
  - fallback_state_transitions_total (labels: from_state, to_state)
  - safe_feed_items
  - breaker_state, breaker_requests_total,
    breaker_state_transitions_total (labels: name, ...)

Event stream:
  - feed_events_emitted_total (labels: topic), feed_events_dropped_total,
    feed_event_publish_errors_total

API:
  - api_requests_total, api_request_duration_seconds, api_active_requests

# Usage

	metrics.RecordFeedGeneration("home", false, 12*time.Millisecond, 20)
	metrics.RecordAssignment("algo_test", "high_recency")

All recording functions are safe for concurrent use; the Prometheus client
handles synchronization internally. Labels stay low-cardinality: experiment
and variant IDs are operator-defined configuration values, never user IDs.
*/
package metrics
