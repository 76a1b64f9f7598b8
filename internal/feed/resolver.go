// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package feed

import (
	"strings"
	"time"
)

// shortSessionWindow is the session length below which short-form content
// is rewarded.
const shortSessionWindow = 5 * time.Minute

// RawContext carries the unvalidated request-time attributes a client
// reports. Everything is optional; anything missing or unparseable
// resolves to a neutral value.
type RawContext struct {
	// Device is the client device class (mobile, tablet, desktop, tv).
	Device string `json:"device,omitempty"`

	// Connectivity is the reported connection class (low, medium, high).
	Connectivity string `json:"connectivity,omitempty"`

	// Country is the request country code.
	Country string `json:"country,omitempty"`

	// Region is a free-form subdivision.
	Region string `json:"region,omitempty"`

	// Weather is the reported local weather (clear, rain, snow, heat).
	Weather string `json:"weather,omitempty"`

	// LocalTime is the client's local clock in RFC 3339. Daypart, weekday
	// and season derive from it.
	LocalTime string `json:"local_time,omitempty"`

	// SessionSeconds is the expected or typical session length.
	SessionSeconds int `json:"session_seconds,omitempty"`

	// Declared accessibility needs.
	NeedsAltText            bool `json:"needs_alt_text,omitempty"`
	NeedsCaptions           bool `json:"needs_captions,omitempty"`
	NeedsHighContrast       bool `json:"needs_high_contrast,omitempty"`
	NeedsSimplifiedLanguage bool `json:"needs_simplified_language,omitempty"`
}

// Resolver turns raw request attributes into a UserContext. Resolve never
// fails and never blocks: malformed attributes degrade to neutral values
// and the profile lookup is an in-memory read.
type Resolver struct {
	profiles ProfileSource
}

// NewResolver returns a resolver. profiles may be nil, in which case all
// contexts resolve without interests and relevance contributes nothing.
func NewResolver(profiles ProfileSource) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve builds the request context for a user.
func (r *Resolver) Resolve(userID string, raw RawContext) *UserContext {
	uc := &UserContext{
		UserID:       userID,
		ResolvedAt:   time.Now().UTC(),
		Device:       parseDevice(raw.Device),
		Connectivity: parseConnectivity(raw.Connectivity),
		Location: Location{
			Country: strings.ToUpper(strings.TrimSpace(raw.Country)),
			Region:  strings.TrimSpace(raw.Region),
			Weather: parseWeather(raw.Weather),
		},
		ShortSession: raw.SessionSeconds > 0 && time.Duration(raw.SessionSeconds)*time.Second < shortSessionWindow,
		Accessibility: AccessibilityNeeds{
			AltText:            raw.NeedsAltText,
			Captions:           raw.NeedsCaptions,
			HighContrast:       raw.NeedsHighContrast,
			SimplifiedLanguage: raw.NeedsSimplifiedLanguage,
		},
	}

	if t, err := time.Parse(time.RFC3339, raw.LocalTime); err == nil {
		uc.Daypart = daypartOf(t.Hour())
		uc.Weekday = t.Weekday()
		uc.WeekdayKnown = true
		uc.Location.Season = seasonOf(t.Month())
	}

	if r.profiles != nil {
		if p, ok := r.profiles.Profile(userID); ok && p != nil {
			uc.TopicInterests = p.TopicInterests
			uc.ContentTypePrefs = p.ContentTypePrefs
		}
	}

	return uc
}

func parseDevice(s string) DeviceClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile", "phone":
		return DeviceMobile
	case "tablet":
		return DeviceTablet
	case "desktop", "web":
		return DeviceDesktop
	case "tv":
		return DeviceTV
	default:
		return DeviceUnknown
	}
}

func parseConnectivity(s string) ConnectivityClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "2g", "3g", "metered":
		return ConnectivityLow
	case "medium", "4g":
		return ConnectivityMedium
	case "high", "5g", "wifi", "ethernet":
		return ConnectivityHigh
	default:
		return ConnectivityUnknown
	}
}

func parseWeather(s string) Weather {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clear", "sunny":
		return WeatherClear
	case "rain", "storm", "drizzle":
		return WeatherRain
	case "snow", "ice":
		return WeatherSnow
	case "heat", "heatwave":
		return WeatherHeat
	default:
		return WeatherUnknown
	}
}

func daypartOf(hour int) Daypart {
	switch {
	case hour >= 5 && hour < 12:
		return DaypartMorning
	case hour >= 12 && hour < 17:
		return DaypartAfternoon
	case hour >= 17 && hour < 23:
		return DaypartEvening
	default:
		return DaypartNight
	}
}

// seasonOf uses northern-hemisphere months. Clients in the southern
// hemisphere report season-sensitive context rarely enough that the
// simplification has not earned a timezone database.
func seasonOf(m time.Month) Season {
	switch m {
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	case time.September, time.October, time.November:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}
