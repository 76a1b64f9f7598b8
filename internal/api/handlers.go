// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/feedloom/feedloom/internal/config"
	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/feed/engine"
	"github.com/feedloom/feedloom/internal/logging"
	"github.com/feedloom/feedloom/internal/middleware"
)

// Handler serves the feed API endpoints.
type Handler struct {
	engine    *engine.Engine
	config    *config.Config
	perfMon   *middleware.PerformanceMonitor
	startTime time.Time
}

// NewHandler creates the endpoint handler over the given engine.
func NewHandler(eng *engine.Engine, cfg *config.Config) *Handler {
	return &Handler{
		engine:    eng,
		config:    cfg,
		perfMon:   middleware.NewPerformanceMonitor(1000),
		startTime: time.Now(),
	}
}

// PerformanceStats returns per-endpoint latency statistics from the
// in-process sliding window.
func (h *Handler) PerformanceStats() []middleware.EndpointStats {
	if h.perfMon == nil {
		return nil
	}
	return h.perfMon.GetStats()
}

// Feed handles GET /api/v1/feed. Validation failures return 400; every
// other failure class is absorbed by the engine and served degraded.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := FeedRequest{
		UserID:   r.URL.Query().Get("user_id"),
		FeedType: r.URL.Query().Get("feed_type"),
		PageSize: getIntParam(r, "page_size", 0),
		Cursor:   r.URL.Query().Get("cursor"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	generated, err := h.engine.GenerateFeed(r.Context(), feed.Request{
		UserID:   req.UserID,
		FeedType: req.FeedType,
		PageSize: req.PageSize,
		Cursor:   req.Cursor,
		Context:  contextFromRequest(r),
	})
	if err != nil {
		h.respondGenerationError(w, r, err)
		return
	}

	respondSuccess(w, r, generated, start)
}

// respondGenerationError maps the engine's caller-visible errors onto
// HTTP statuses: validation to 400, caller disconnect to 499-style 503.
func (h *Handler) respondGenerationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case feed.IsInvalidRequest(err):
		var ire *feed.InvalidRequestError
		errors.As(err, &ire)
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, ire.Error(), map[string]interface{}{
			"field": ire.Field,
		})
	case errors.Is(err, r.Context().Err()):
		// The caller went away mid-generation; the response is a
		// courtesy for proxies that still deliver it.
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "request canceled", nil)
	default:
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("Unexpected feed generation error")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "feed generation failed", nil)
	}
}
