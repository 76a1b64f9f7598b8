// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/feedloom/feedloom/internal/metrics"
)

// PrometheusMetrics feeds every request into the metrics package: one
// counter increment, one latency observation, and the in-flight gauge
// around the handler call.
func PrometheusMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next(rec, r)

		metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
	}
}
