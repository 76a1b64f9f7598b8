// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"net/http"
	"time"

	"github.com/feedloom/feedloom/internal/fallback"
)

// serverVersion is reported by the health endpoint.
const serverVersion = "1.0.0"

// healthStatus is the GET /health payload.
type healthStatus struct {
	// Status is the fallback controller state: healthy, recovering or
	// degraded.
	Status string `json:"status"`

	// DegradedCause names the failure class while degraded.
	DegradedCause string `json:"degraded_cause,omitempty"`

	// Version is the server version.
	Version string `json:"version"`

	// UptimeSeconds is time since process start.
	UptimeSeconds float64 `json:"uptime_seconds"`

	// ActiveExperiments is the size of the current experiment snapshot.
	ActiveExperiments int `json:"active_experiments"`

	// SafeFeedItems maps feed types to cached safe-feed sizes.
	SafeFeedItems map[string]int `json:"safe_feed_items"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	state := h.engine.Health()

	status := healthStatus{
		Status:            state.String(),
		Version:           serverVersion,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
		ActiveExperiments: h.engine.Assigner().Snapshot().Len(),
		SafeFeedItems:     h.safeFeedSizes(),
	}
	if state == fallback.StateDegraded {
		status.DegradedCause = string(h.engine.Controller().Cause())
	}

	respondSuccess(w, r, status, start)
}

// HealthLive handles GET /api/v1/health/live. It answers 200 whenever
// the process can serve HTTP, regardless of dependency health.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	respondSuccess(w, r, map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}, start)
}

// HealthReady handles GET /api/v1/health/ready. Degraded is still ready:
// the safe feed keeps serving, and pulling the instance would lose even
// that. Not ready means degraded with nothing cached to serve.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	state := h.engine.Health()
	sizes := h.safeFeedSizes()

	cached := 0
	for _, n := range sizes {
		cached += n
	}

	ready := state != fallback.StateDegraded || cached > 0

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, r, statusCode, &APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"ready_to_serve":  ready,
			"state":           state.String(),
			"safe_feed_items": cached,
		},
		Metadata: Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// safeFeedSizes reports the cached safe-feed size per configured feed
// type.
func (h *Handler) safeFeedSizes() map[string]int {
	sizes := make(map[string]int, len(h.config.Feed.FeedTypes))
	for _, feedType := range h.config.Feed.FeedTypes {
		sizes[feedType] = h.engine.SafeFeedLen(feedType)
	}
	return sizes
}
