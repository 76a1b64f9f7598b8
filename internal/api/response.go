// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/feedloom/feedloom/internal/logging"
)

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	// Status is "success" or "error".
	Status string `json:"status"`

	// Data is the response payload, null on error.
	Data interface{} `json:"data"`

	// Metadata describes the response itself.
	Metadata Metadata `json:"metadata"`

	// Error carries failure details, omitted on success.
	Error *APIError `json:"error,omitempty"`
}

// Metadata is per-response observability data.
type Metadata struct {
	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`

	// QueryTimeMS is the handler's processing time in milliseconds.
	QueryTimeMS int64 `json:"query_time_ms"`

	// RequestID echoes the request's tracing ID.
	RequestID string `json:"request_id,omitempty"`
}

// APIError is a machine-readable error payload.
type APIError struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Details carries structured context, such as per-field validation
	// failures.
	Details interface{} `json:"details,omitempty"`
}

// Error codes for API responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// respondJSON writes the envelope with caching and tracing headers.
// Feed responses are personalized, so caching stays private.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *APIResponse) {
	response.Metadata.RequestID = logging.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "private, max-age=30")
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess writes a success envelope with elapsed time since start.
func respondSuccess(w http.ResponseWriter, r *http.Request, data interface{}, start time.Time) {
	respondJSON(w, r, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   data,
		Metadata: Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	respondJSON(w, r, status, &APIResponse{
		Status: "error",
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// generateETag creates a weak ETag from data using FNV-1a.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// sanitizeLogValue strips control characters so attacker-supplied values
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
