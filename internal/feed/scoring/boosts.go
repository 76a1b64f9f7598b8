// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package scoring

import (
	"strings"
	"time"

	"github.com/feedloom/feedloom/internal/feed"
)

// Boost magnitudes. Each term is independent and additive; unknown
// context fields contribute nothing, so a neutral context scores every
// item on signals alone.
const (
	daypartAffinityBoost   = 0.15
	businessTopicBoost     = 0.2
	businessTopicPenalty   = -0.1
	weekendAffinityBoost   = 0.1
	weatherAffinityBoost   = 0.1
	seasonAffinityBoost    = 0.1
	localTopicBoost        = 0.1
	lowBandwidthPenalty    = -0.2
	shortSessionBoost      = 0.15
	tvVideoBoost           = 0.1
	mobileShortFormBoost   = 0.05
	accessibilityNeedBoost = 0.1
)

// daypartTopics maps a daypart to the topics it favors.
var daypartTopics = map[feed.Daypart][]string{
	feed.DaypartMorning: {"news", "education"},
	feed.DaypartEvening: {"entertainment", "lifestyle"},
}

// weekendTopics are favored on Saturday and Sunday.
var weekendTopics = []string{"lifestyle", "sports"}

// businessFavored and businessPenalized apply during weekday working
// hours.
var (
	businessFavored   = []string{"professional", "business", "technology"}
	businessPenalized = []string{"personal", "entertainment"}
)

// weatherTopics maps weather to favored topics: fair weather points
// outdoors, everything else points indoors.
var weatherTopics = map[feed.Weather][]string{
	feed.WeatherClear: {"travel", "sports", "outdoors"},
	feed.WeatherRain:  {"entertainment", "cooking", "gaming"},
	feed.WeatherSnow:  {"entertainment", "cooking", "gaming"},
	feed.WeatherHeat:  {"entertainment", "gaming", "health"},
}

// seasonTopics maps seasons to favored topics.
var seasonTopics = map[feed.Season][]string{
	feed.SeasonSpring: {"outdoors", "travel"},
	feed.SeasonSummer: {"travel", "outdoors", "sports"},
	feed.SeasonAutumn: {"education", "cooking"},
	feed.SeasonWinter: {"cooking", "entertainment"},
}

// ContextBoosts sums the additive contextual terms for one item. Every
// term keys off a resolved context field; the neutral context yields 0.
func ContextBoosts(item *feed.CandidateItem, user *feed.UserContext) float64 {
	boost := 0.0
	boost += timeBoost(item, user)
	boost += placeBoost(item, user)
	boost += deviceBoost(item, user)
	boost += accessibilityBoost(item, user)
	return boost
}

// timeBoost covers daypart, weekend and business-hours topic affinity.
func timeBoost(item *feed.CandidateItem, user *feed.UserContext) float64 {
	boost := 0.0

	for _, topic := range daypartTopics[user.Daypart] {
		if item.HasTopic(topic) {
			boost += daypartAffinityBoost
		}
	}

	if user.WeekdayKnown && (user.Weekday == time.Saturday || user.Weekday == time.Sunday) {
		for _, topic := range weekendTopics {
			if item.HasTopic(topic) {
				boost += weekendAffinityBoost
			}
		}
	}

	if user.BusinessHours() {
		for _, topic := range businessFavored {
			if item.HasTopic(topic) {
				boost += businessTopicBoost
			}
		}
		for _, topic := range businessPenalized {
			if item.HasTopic(topic) {
				boost += businessTopicPenalty
			}
		}
	}

	return boost
}

// placeBoost covers weather, season and local-topic matches.
func placeBoost(item *feed.CandidateItem, user *feed.UserContext) float64 {
	boost := 0.0

	for _, topic := range weatherTopics[user.Location.Weather] {
		if item.HasTopic(topic) {
			boost += weatherAffinityBoost
		}
	}

	for _, topic := range seasonTopics[user.Location.Season] {
		if item.HasTopic(topic) {
			boost += seasonAffinityBoost
		}
	}

	// An item tagged with the user's own country or region is local
	// content.
	if c := strings.ToLower(user.Location.Country); c != "" && item.HasTopic(c) {
		boost += localTopicBoost
	}
	if r := strings.ToLower(user.Location.Region); r != "" && item.HasTopic(r) {
		boost += localTopicBoost
	}

	return boost
}

// deviceBoost covers bandwidth suitability, session length and device
// affinity.
func deviceBoost(item *feed.CandidateItem, user *feed.UserContext) float64 {
	boost := 0.0

	if user.Connectivity == feed.ConnectivityLow && item.ContentType.RichMedia() {
		boost += lowBandwidthPenalty
	}
	if user.ShortSession && item.ContentType.ShortForm() {
		boost += shortSessionBoost
	}
	if user.Device == feed.DeviceTV && (item.ContentType == feed.ContentVideo || item.ContentType == feed.ContentLive) {
		boost += tvVideoBoost
	}
	if user.Device == feed.DeviceMobile && item.ContentType.ShortForm() {
		boost += mobileShortFormBoost
	}

	return boost
}

// accessibilityBoost rewards items meeting declared needs, one increment
// per met need.
func accessibilityBoost(item *feed.CandidateItem, user *feed.UserContext) float64 {
	boost := 0.0
	needs := user.Accessibility
	features := item.Accessibility

	if needs.AltText && features.AltText {
		boost += accessibilityNeedBoost
	}
	if needs.Captions && features.Captions {
		boost += accessibilityNeedBoost
	}
	if needs.HighContrast && features.HighContrast {
		boost += accessibilityNeedBoost
	}
	if needs.SimplifiedLanguage && features.SimplifiedLanguage {
		boost += accessibilityNeedBoost
	}

	return boost
}
