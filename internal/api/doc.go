// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

/*
Package api provides the HTTP surface over the feed engine.

Routes are mounted on a chi router with a production middleware stack:
request IDs with logging context, real IP extraction, panic recovery,
CORS, per-group rate limits and security headers.

Endpoints:

	GET    /api/v1/feed               generate a personalized feed page
	GET    /api/v1/assignment         peek a user's experiment assignment
	GET    /api/v1/experiments        summarize the active experiment snapshot
	POST   /api/v1/experiments/force  force a user into a variant
	DELETE /api/v1/experiments/force  clear a forced assignment
	GET    /api/v1/health             controller state and component checks
	GET    /api/v1/health/live        liveness probe
	GET    /api/v1/health/ready       readiness probe
	GET    /metrics                   Prometheus metrics

All responses use a common envelope with status, data, error and
metadata. The only client-visible failure from feed generation is
request validation; everything else degrades inside the engine.
*/
package api
