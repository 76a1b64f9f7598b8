// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ctxKey keeps this package's context values collision-free.
type ctxKey int

const (
	ctxKeyCorrelationID ctxKey = iota
	ctxKeyRequestID
)

// GenerateCorrelationID returns a short random ID that ties together the
// log lines of one logical operation. Eight characters read well in log
// output and collide rarely enough for correlation.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a full UUID identifying one HTTP request.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithCorrelationID attaches a correlation ID to ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// ContextWithNewCorrelationID attaches a freshly generated correlation
// ID to ctx.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "" when none
// is attached.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxKeyCorrelationID)
}

// ContextWithRequestID attaches an HTTP request ID to ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext returns the request ID, or "" when none is
// attached.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxKeyRequestID)
}

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// Ctx returns a logger carrying any request and correlation IDs found in
// ctx. Handlers log through it so every line of one request shares the
// same identifiers.
//
//	logging.Ctx(ctx).Info().Str("feed_type", ft).Msg("feed generated")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With().Str("correlation_id", id).Logger()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With().Str("request_id", id).Logger()
	}
	return &logger
}

// WithComponent returns a child logger tagged with a component name.
// Long-lived components build one at construction time:
//
//	logger: logging.WithComponent("fallback")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
