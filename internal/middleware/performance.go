// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/feedloom/feedloom/internal/logging"
)

const (
	// slowRequestMS is the latency above which a request gets a warning
	// log line.
	slowRequestMS = 1000

	defaultWindowSize = 1000
)

// RequestSample is one observed request.
type RequestSample struct {
	Path       string
	Method     string
	DurationMS int64
	StatusCode int
	Timestamp  time.Time
}

// PerformanceMonitor keeps the last N request samples in a ring buffer and
// aggregates them into per-endpoint latency statistics on demand.
type PerformanceMonitor struct {
	mu     sync.RWMutex
	window []RequestSample
	next   int
	filled bool
}

// EndpointStats summarizes the sampled latencies of one method+path pair.
type EndpointStats struct {
	Path         string
	RequestCount int64
	AvgDuration  float64
	P50Duration  int64
	P95Duration  int64
	P99Duration  int64
	MinDuration  int64
	MaxDuration  int64
}

// NewPerformanceMonitor creates a monitor whose window holds capacity
// samples. Non-positive capacities get a sensible default.
func NewPerformanceMonitor(capacity int) *PerformanceMonitor {
	if capacity < 1 {
		capacity = defaultWindowSize
	}
	return &PerformanceMonitor{window: make([]RequestSample, capacity)}
}

// Record stores one sample, evicting the oldest once the window is full.
func (pm *PerformanceMonitor) Record(s RequestSample) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.window[pm.next] = s
	pm.next++
	if pm.next == len(pm.window) {
		pm.next = 0
		pm.filled = true
	}
}

// snapshotLocked copies the window contents, oldest sample first. Callers
// must hold at least a read lock.
func (pm *PerformanceMonitor) snapshotLocked() []RequestSample {
	if !pm.filled {
		out := make([]RequestSample, pm.next)
		copy(out, pm.window[:pm.next])
		return out
	}

	out := make([]RequestSample, 0, len(pm.window))
	out = append(out, pm.window[pm.next:]...)
	out = append(out, pm.window[:pm.next]...)
	return out
}

// GetStats aggregates the current window per endpoint, busiest endpoint
// first.
func (pm *PerformanceMonitor) GetStats() []EndpointStats {
	pm.mu.RLock()
	samples := pm.snapshotLocked()
	pm.mu.RUnlock()

	byEndpoint := make(map[string][]int64)
	for _, s := range samples {
		key := s.Method + " " + s.Path
		byEndpoint[key] = append(byEndpoint[key], s.DurationMS)
	}

	stats := make([]EndpointStats, 0, len(byEndpoint))
	for endpoint, durations := range byEndpoint {
		stats = append(stats, summarize(endpoint, durations))
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].RequestCount > stats[j].RequestCount
	})
	return stats
}

// Recent returns up to n samples, oldest first.
func (pm *PerformanceMonitor) Recent(n int) []RequestSample {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	samples := pm.snapshotLocked()
	if n < len(samples) {
		samples = samples[len(samples)-n:]
	}
	return samples
}

// Middleware samples every request passing through and warns about slow
// ones. Its func(http.Handler) http.Handler shape plugs straight into chi.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start).Milliseconds()
		pm.Record(RequestSample{
			Path:       r.URL.Path,
			Method:     r.Method,
			DurationMS: elapsed,
			StatusCode: rec.status,
			Timestamp:  time.Now(),
		})

		if elapsed > slowRequestMS {
			logging.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int64("duration_ms", elapsed).
				Msg("Slow request")
		}
	})
}

// summarize computes the stat line for one endpoint. durations is owned by
// the caller and may be sorted in place; it is never empty.
func summarize(endpoint string, durations []int64) EndpointStats {
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum int64
	for _, d := range durations {
		sum += d
	}
	n := len(durations)

	return EndpointStats{
		Path:         endpoint,
		RequestCount: int64(n),
		AvgDuration:  float64(sum) / float64(n),
		P50Duration:  percentile(durations, 0.50),
		P95Duration:  percentile(durations, 0.95),
		P99Duration:  percentile(durations, 0.99),
		MinDuration:  durations[0],
		MaxDuration:  durations[n-1],
	}
}

// percentile picks the nearest-rank value for quantile q from a sorted
// slice.
func percentile(sorted []int64, q float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*q)]
}

// statusRecorder captures the status code a handler writes. Both the
// Prometheus and the performance middleware wrap responses with it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}
