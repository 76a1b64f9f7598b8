// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"net/http"
	"strconv"

	"github.com/feedloom/feedloom/internal/validation"
)

// FeedRequest holds the validated query parameters for GET /feed.
// Feed type membership is checked by the engine against the configured
// feed types; page size is clamped there as well, so the bounds here
// only reject nonsense values early.
type FeedRequest struct {
	UserID   string `validate:"required,min=1,max=128"`
	FeedType string `validate:"required,min=1,max=64"`
	PageSize int    `validate:"min=0,max=100"`
	Cursor   string `validate:"omitempty,base64url"`
}

// AssignmentRequest holds the validated query parameters for
// GET /assignment.
type AssignmentRequest struct {
	UserID   string `validate:"required,min=1,max=128"`
	FeedType string `validate:"required,min=1,max=64"`
}

// ForceAssignmentRequest is the request body for POST /experiments/force.
type ForceAssignmentRequest struct {
	UserID       string `json:"user_id" validate:"required,min=1,max=128"`
	ExperimentID string `json:"experiment_id" validate:"required,min=1,max=128"`
	VariantID    string `json:"variant_id" validate:"required,min=1,max=128"`
}

// UnforceAssignmentRequest holds the parameters for
// DELETE /experiments/force.
type UnforceAssignmentRequest struct {
	UserID       string `validate:"required,min=1,max=128"`
	ExperimentID string `validate:"required,min=1,max=128"`
}

// validateRequest validates a struct with go-playground/validator and
// converts failures into the API error payload.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// getBoolParam extracts a boolean query parameter; absent or malformed
// values are false.
func getBoolParam(r *http.Request, key string) bool {
	value := r.URL.Query().Get(key)
	if value == "" {
		return false
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return parsed
}
