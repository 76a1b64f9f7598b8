// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package middleware provides HTTP middleware shared across the API
// surface.
//
// The middleware here uses the func(http.HandlerFunc) http.HandlerFunc
// form except for PerformanceMonitor.Middleware, which is already
// chi-compatible. The api package adapts the HandlerFunc form into
// chi's func(http.Handler) http.Handler where needed.
//
// Provided middleware:
//
//   - PrometheusMetrics: per-request counters, latency histograms and
//     an active request gauge in the metrics package.
//   - Compression: gzip response compression with pooled writers.
//   - PerformanceMonitor: an in-process sliding window of request
//     latencies with percentile aggregation and slow request logging.
package middleware
