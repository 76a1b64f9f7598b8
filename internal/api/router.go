// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feedloom/feedloom/internal/config"
	"github.com/feedloom/feedloom/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for the given handler.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddlewareFromConfig(cfg.API),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// Health endpoints get permissive rate limiting so monitoring
	// polls do not eat into feed traffic budgets.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	// Core read endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiAdapter(middleware.PrometheusMetrics))
		r.Use(router.handler.perfMon.Middleware)
		r.Use(chiAdapter(middleware.Compression))

		r.Get("/feed", router.handler.Feed)
		r.Get("/assignment", router.handler.Assignment)
		r.Get("/experiments", router.handler.Experiments)
	})

	// Operator write endpoints get a stricter rate limit.
	r.Route("/api/v1/experiments/force", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitWrite())
		r.Use(APISecurityHeaders())
		r.Use(chiAdapter(middleware.PrometheusMetrics))

		r.Post("/", router.handler.ForceAssignment)
		r.Delete("/", router.handler.UnforceAssignment)
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

// Server builds an http.Server with sane timeouts around the router.
func (router *Router) Server(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Timeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       2 * cfg.Timeout,
	}
}
