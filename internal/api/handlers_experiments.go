// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/feedloom/feedloom/internal/logging"
)

// assignmentView is the GET /assignment payload.
type assignmentView struct {
	UserID     string      `json:"user_id"`
	FeedType   string      `json:"feed_type"`
	Assigned   bool        `json:"assigned"`
	Assignment interface{} `json:"assignment,omitempty"`
}

// experimentSummary is one experiment in the GET /experiments payload.
// Variant parameters stay internal; the summary is for dashboards, not
// for reconstructing ranking behavior.
type experimentSummary struct {
	ID               string           `json:"id"`
	FeedTypes        []string         `json:"feed_types"`
	TargetPercentage float64          `json:"target_percentage"`
	Variants         []variantSummary `json:"variants"`
}

type variantSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Allocation float64 `json:"allocation"`
	IsControl  bool    `json:"is_control"`
}

// Assignment handles GET /api/v1/assignment. It peeks the assignment
// without recording an observation, so dashboards do not pollute
// assignment analytics.
func (h *Handler) Assignment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := AssignmentRequest{
		UserID:   r.URL.Query().Get("user_id"),
		FeedType: r.URL.Query().Get("feed_type"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	view := assignmentView{
		UserID:   req.UserID,
		FeedType: req.FeedType,
	}
	if result := h.engine.ExperimentAssignment(req.UserID, req.FeedType); result != nil {
		view.Assigned = true
		view.Assignment = result
	}

	respondSuccess(w, r, view, start)
}

// Experiments handles GET /api/v1/experiments.
func (h *Handler) Experiments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	snapshot := h.engine.Assigner().Snapshot()
	defs := snapshot.All()

	summaries := make([]experimentSummary, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		variants := make([]variantSummary, 0, len(def.Variants))
		for _, v := range def.Variants {
			variants = append(variants, variantSummary{
				ID:         v.ID,
				Name:       v.Name,
				Allocation: v.Allocation,
				IsControl:  v.IsControl,
			})
		}
		summaries = append(summaries, experimentSummary{
			ID:               def.ID,
			FeedTypes:        def.FeedTypes,
			TargetPercentage: def.TargetPercentage,
			Variants:         variants,
		})
	}

	respondSuccess(w, r, map[string]interface{}{
		"count":       len(summaries),
		"loaded_at":   snapshot.LoadedAt(),
		"experiments": summaries,
	}, start)
}

// ForceAssignment handles POST /api/v1/experiments/force. The override
// applies on the next generation for the user.
func (h *Handler) ForceAssignment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ForceAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	if err := h.engine.Assigner().Force(req.UserID, req.ExperimentID, req.VariantID); err != nil {
		status := http.StatusBadRequest
		code := ErrCodeBadRequest
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "no variant") {
			status = http.StatusNotFound
			code = ErrCodeNotFound
		}
		respondError(w, r, status, code, err.Error(), nil)
		return
	}

	logging.Info().
		Str("user_id", sanitizeLogValue(req.UserID)).
		Str("experiment_id", sanitizeLogValue(req.ExperimentID)).
		Str("variant_id", sanitizeLogValue(req.VariantID)).
		Msg("Forced assignment via API")

	respondSuccess(w, r, map[string]interface{}{
		"user_id":       req.UserID,
		"experiment_id": req.ExperimentID,
		"variant_id":    req.VariantID,
		"forced":        true,
	}, start)
}

// UnforceAssignment handles DELETE /api/v1/experiments/force. Clearing a
// missing override succeeds, matching the assigner's no-op semantics.
func (h *Handler) UnforceAssignment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := UnforceAssignmentRequest{
		UserID:       r.URL.Query().Get("user_id"),
		ExperimentID: r.URL.Query().Get("experiment_id"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	h.engine.Assigner().Unforce(req.UserID, req.ExperimentID)

	respondSuccess(w, r, map[string]interface{}{
		"user_id":       req.UserID,
		"experiment_id": req.ExperimentID,
		"forced":        false,
	}, start)
}
