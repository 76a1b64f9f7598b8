// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package api

import (
	"net/http"
	"strings"

	"github.com/feedloom/feedloom/internal/feed"
)

// Context signal headers. Query parameters of the same name (without the
// prefix) take precedence, so ad-hoc clients can pass signals without
// custom headers.
const (
	headerDevice       = "X-Feed-Device"
	headerConnectivity = "X-Feed-Connectivity"
	headerCountry      = "X-Feed-Country"
	headerRegion       = "X-Feed-Region"
	headerWeather      = "X-Feed-Weather"
	headerLocalTime    = "X-Feed-Local-Time"
	headerNeeds        = "X-Feed-Accessibility"
)

// contextFromRequest collects the raw context signals from query
// parameters and headers. Values pass through untouched; the resolver
// owns interpretation and treats anything malformed as absent.
func contextFromRequest(r *http.Request) feed.RawContext {
	raw := feed.RawContext{
		Device:         signal(r, "device", headerDevice),
		Connectivity:   signal(r, "connectivity", headerConnectivity),
		Country:        signal(r, "country", headerCountry),
		Region:         signal(r, "region", headerRegion),
		Weather:        signal(r, "weather", headerWeather),
		LocalTime:      signal(r, "local_time", headerLocalTime),
		SessionSeconds: getIntParam(r, "session_seconds", 0),
	}

	raw.NeedsAltText = getBoolParam(r, "needs_alt_text")
	raw.NeedsCaptions = getBoolParam(r, "needs_captions")
	raw.NeedsHighContrast = getBoolParam(r, "needs_high_contrast")
	raw.NeedsSimplifiedLanguage = getBoolParam(r, "needs_simplified_language")

	// The accessibility header carries a comma-separated needs list and
	// is additive with the query flags.
	for _, need := range parseCommaSeparated(r.Header.Get(headerNeeds)) {
		switch need {
		case "alt_text":
			raw.NeedsAltText = true
		case "captions":
			raw.NeedsCaptions = true
		case "high_contrast":
			raw.NeedsHighContrast = true
		case "simplified_language":
			raw.NeedsSimplifiedLanguage = true
		}
	}

	return raw
}

// signal reads a query parameter, falling back to a header.
func signal(r *http.Request, param, header string) string {
	if v := r.URL.Query().Get(param); v != "" {
		return v
	}
	return r.Header.Get(header)
}

// parseCommaSeparated splits a comma-separated string, trimming blanks.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}

	var result []string
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
