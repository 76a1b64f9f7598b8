// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package feed

import (
	"context"
	"time"

	"github.com/feedloom/feedloom/internal/experiment"
)

// ContentType classifies candidate items by format.
type ContentType string

const (
	// ContentText is a plain text post or article.
	ContentText ContentType = "text"
	// ContentImage is a still image post.
	ContentImage ContentType = "image"
	// ContentVideo is long-form video.
	ContentVideo ContentType = "video"
	// ContentShortVideo is short-form vertical video.
	ContentShortVideo ContentType = "short_video"
	// ContentAudio is a podcast or audio clip.
	ContentAudio ContentType = "audio"
	// ContentLink is an external link share.
	ContentLink ContentType = "link"
	// ContentLive is a live stream.
	ContentLive ContentType = "live"
)

// RichMedia reports whether the format is bandwidth-heavy.
func (c ContentType) RichMedia() bool {
	switch c {
	case ContentVideo, ContentLive, ContentShortVideo:
		return true
	default:
		return false
	}
}

// ShortForm reports whether the format suits brief sessions.
func (c ContentType) ShortForm() bool {
	return c == ContentShortVideo || c == ContentText || c == ContentImage
}

// AccessibilityFeatures flags the accessibility affordances an item
// provides.
type AccessibilityFeatures struct {
	// AltText indicates image descriptions are present.
	AltText bool `json:"alt_text"`

	// Captions indicates audio/video carries captions.
	Captions bool `json:"captions"`

	// HighContrast indicates a high-contrast rendition exists.
	HighContrast bool `json:"high_contrast"`

	// SimplifiedLanguage indicates a plain-language rendition exists.
	SimplifiedLanguage bool `json:"simplified_language"`
}

// CandidateItem is one item under consideration for a feed. Items are
// owned by the content supplier and treated as immutable within a ranking
// pass.
type CandidateItem struct {
	// ID uniquely identifies the item.
	ID string `json:"id"`

	// AuthorID identifies the item's author, used for per-author caps.
	AuthorID string `json:"author_id"`

	// ContentType is the item's format.
	ContentType ContentType `json:"content_type"`

	// Topics is the item's topic set. Order carries no meaning.
	Topics []string `json:"topics"`

	// CreatedAt is the publication time.
	CreatedAt time.Time `json:"created_at"`

	// BaseScore is the upstream popularity/quality signal in [0, 1].
	// How it is computed is the supplier's concern.
	BaseScore float64 `json:"base_score"`

	// Accessibility flags the item's accessibility affordances.
	Accessibility AccessibilityFeatures `json:"accessibility"`

	// Sensitive marks content unsuitable for the degraded-path safe feed.
	Sensitive bool `json:"sensitive,omitempty"`

	// Metadata carries supplier-defined attributes the ranking core does
	// not interpret.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasTopic reports whether the item carries the given topic.
func (c *CandidateItem) HasTopic(topic string) bool {
	for _, t := range c.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// DeviceClass classifies the requesting device.
type DeviceClass string

const (
	// DeviceUnknown applies when the device is not identified.
	DeviceUnknown DeviceClass = ""
	// DeviceMobile is a phone.
	DeviceMobile DeviceClass = "mobile"
	// DeviceTablet is a tablet.
	DeviceTablet DeviceClass = "tablet"
	// DeviceDesktop is a desktop or laptop browser.
	DeviceDesktop DeviceClass = "desktop"
	// DeviceTV is a television app.
	DeviceTV DeviceClass = "tv"
)

// ConnectivityClass classifies the connection quality.
type ConnectivityClass string

const (
	// ConnectivityUnknown applies when bandwidth is not reported.
	ConnectivityUnknown ConnectivityClass = ""
	// ConnectivityLow is constrained bandwidth (2G/3G, metered).
	ConnectivityLow ConnectivityClass = "low"
	// ConnectivityMedium is moderate bandwidth.
	ConnectivityMedium ConnectivityClass = "medium"
	// ConnectivityHigh is unconstrained bandwidth.
	ConnectivityHigh ConnectivityClass = "high"
)

// Daypart classifies local time of day for topic affinity boosts. The
// zero value means the local time was not resolvable and time boosts are
// skipped.
type Daypart string

const (
	// DaypartUnknown applies when local time is unavailable.
	DaypartUnknown Daypart = ""
	// DaypartMorning is 05:00-11:59 local.
	DaypartMorning Daypart = "morning"
	// DaypartAfternoon is 12:00-16:59 local.
	DaypartAfternoon Daypart = "afternoon"
	// DaypartEvening is 17:00-22:59 local.
	DaypartEvening Daypart = "evening"
	// DaypartNight is 23:00-04:59 local.
	DaypartNight Daypart = "night"
)

// Season classifies the local season. The zero value skips seasonal
// boosts.
type Season string

const (
	// SeasonUnknown applies when the season is unavailable.
	SeasonUnknown Season = ""
	// SeasonSpring is March-May (northern hemisphere reference).
	SeasonSpring Season = "spring"
	// SeasonSummer is June-August.
	SeasonSummer Season = "summer"
	// SeasonAutumn is September-November.
	SeasonAutumn Season = "autumn"
	// SeasonWinter is December-February.
	SeasonWinter Season = "winter"
)

// Weather classifies current local weather. The zero value skips weather
// boosts.
type Weather string

const (
	// WeatherUnknown applies when weather is unavailable.
	WeatherUnknown Weather = ""
	// WeatherClear is fair weather.
	WeatherClear Weather = "clear"
	// WeatherRain covers rain and storms.
	WeatherRain Weather = "rain"
	// WeatherSnow covers snow and ice.
	WeatherSnow Weather = "snow"
	// WeatherHeat covers heat waves.
	WeatherHeat Weather = "heat"
)

// Location is the coarse request location used for regional boosts.
type Location struct {
	// Country is the ISO 3166-1 alpha-2 country code, if known.
	Country string `json:"country,omitempty"`

	// Region is a free-form subdivision, if known.
	Region string `json:"region,omitempty"`

	// Weather is the current local weather class.
	Weather Weather `json:"weather,omitempty"`

	// Season is the current local season.
	Season Season `json:"season,omitempty"`
}

// AccessibilityNeeds flags the needs a user has declared.
type AccessibilityNeeds struct {
	// AltText prefers items carrying image descriptions.
	AltText bool `json:"alt_text"`

	// Captions prefers captioned audio/video.
	Captions bool `json:"captions"`

	// HighContrast prefers high-contrast renditions.
	HighContrast bool `json:"high_contrast"`

	// SimplifiedLanguage prefers plain-language renditions.
	SimplifiedLanguage bool `json:"simplified_language"`
}

// Any reports whether at least one need is declared.
func (a AccessibilityNeeds) Any() bool {
	return a.AltText || a.Captions || a.HighContrast || a.SimplifiedLanguage
}

// UserContext is the resolved request-time context a feed is ranked
// against. It is built fresh per request by the Resolver and never
// persisted. Zero-valued fields mean "unknown" and contribute no boosts.
type UserContext struct {
	// UserID identifies the requesting user.
	UserID string `json:"user_id"`

	// ResolvedAt is the instant the context was resolved. Scoring
	// measures item age against it so that every item in one request
	// sees the same clock and re-scoring is reproducible.
	ResolvedAt time.Time `json:"resolved_at"`

	// Device is the requesting device class.
	Device DeviceClass `json:"device,omitempty"`

	// Connectivity is the connection quality class.
	Connectivity ConnectivityClass `json:"connectivity,omitempty"`

	// Location is the coarse request location.
	Location Location `json:"location,omitempty"`

	// Daypart is the local time-of-day class.
	Daypart Daypart `json:"daypart,omitempty"`

	// Weekday is the local day of week. Only meaningful when
	// WeekdayKnown is true.
	Weekday time.Weekday `json:"weekday,omitempty"`

	// WeekdayKnown reports whether Weekday was resolved.
	WeekdayKnown bool `json:"weekday_known,omitempty"`

	// ShortSession indicates the session is expected to be brief,
	// rewarding short-form content.
	ShortSession bool `json:"short_session,omitempty"`

	// Accessibility is the user's declared accessibility needs.
	Accessibility AccessibilityNeeds `json:"accessibility,omitempty"`

	// TopicInterests maps topic names to interest weights in [0, 1].
	TopicInterests map[string]float64 `json:"topic_interests,omitempty"`

	// ContentTypePrefs maps content types to preference weights. A
	// missing entry means no preference adjustment.
	ContentTypePrefs map[ContentType]float64 `json:"content_type_prefs,omitempty"`
}

// BusinessHours reports whether the context falls inside working hours
// on a working day. Unknown dayparts or weekdays never qualify.
func (u *UserContext) BusinessHours() bool {
	if !u.WeekdayKnown || u.Weekday == time.Saturday || u.Weekday == time.Sunday {
		return false
	}
	return u.Daypart == DaypartMorning || u.Daypart == DaypartAfternoon
}

// Profile is the stored slice of a user's history the resolver folds into
// the request context: interest weights and format preferences.
type Profile struct {
	// TopicInterests maps topic names to interest weights in [0, 1].
	TopicInterests map[string]float64 `json:"topic_interests"`

	// ContentTypePrefs maps content types to preference weights.
	ContentTypePrefs map[ContentType]float64 `json:"content_type_prefs,omitempty"`
}

// Weights are the resolved scoring weights for one request: the
// configured baseline with any experiment variant overrides applied
// field by field.
type Weights struct {
	// Recency multiplies the recency step score.
	Recency float64 `json:"recency"`

	// Popularity multiplies the item's base popularity signal.
	Popularity float64 `json:"popularity"`

	// Relevance multiplies the summed topic-interest match.
	Relevance float64 `json:"relevance"`
}

// ScoreBreakdown itemizes the additive terms of an item's score. It lets
// experiments and debugging attribute ranking movement to a term.
type ScoreBreakdown struct {
	// Recency is the weighted recency term.
	Recency float64 `json:"recency"`

	// Popularity is the weighted popularity term.
	Popularity float64 `json:"popularity"`

	// Relevance is the weighted topic-interest term.
	Relevance float64 `json:"relevance"`

	// ContentType is the user's format preference adjustment.
	ContentType float64 `json:"content_type"`

	// Context is the summed contextual boost terms.
	Context float64 `json:"context"`
}

// Total returns the combined score. Scores never go below zero.
func (b ScoreBreakdown) Total() float64 {
	total := b.Recency + b.Popularity + b.Relevance + b.ContentType + b.Context
	if total < 0 {
		return 0
	}
	return total
}

// ScoredItem is a candidate with its computed score and final rank.
type ScoredItem struct {
	// Item is the underlying candidate.
	Item CandidateItem `json:"item"`

	// Score is the combined score, always >= 0.
	Score float64 `json:"score"`

	// Breakdown itemizes the score terms.
	Breakdown ScoreBreakdown `json:"breakdown"`

	// Rank is the item's 1-based position in the final feed.
	Rank int `json:"rank"`
}

// FeedMetadata describes how a feed was generated.
type FeedMetadata struct {
	// AlgorithmID identifies the ranking algorithm family.
	AlgorithmID string `json:"algorithm_id"`

	// AlgorithmVersion is the algorithm revision.
	AlgorithmVersion string `json:"algorithm_version"`

	// GeneratedAt is when generation finished.
	GeneratedAt time.Time `json:"generated_at"`

	// DurationMS is the end-to-end generation latency in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// CandidateCount is how many candidates were considered.
	CandidateCount int `json:"candidate_count"`

	// ReturnedCount is how many items the feed contains.
	ReturnedCount int `json:"returned_count"`

	// DroppedItems is how many candidates were dropped by scoring faults.
	DroppedItems int `json:"dropped_items,omitempty"`

	// Experiment is the applied assignment, if any.
	Experiment *experiment.AssignmentResult `json:"experiment,omitempty"`

	// Degraded marks a feed served from the fallback path.
	Degraded bool `json:"degraded"`

	// DegradedCause names the failure class behind a degraded feed.
	DegradedCause string `json:"degraded_cause,omitempty"`
}

// GeneratedFeed is the ordered result of one generation request.
// Every item originates from the candidate set fetched for the request;
// the engine never fabricates items.
type GeneratedFeed struct {
	// UserID is the user the feed was generated for.
	UserID string `json:"user_id"`

	// FeedType is the requested feed type.
	FeedType string `json:"feed_type"`

	// Items is the ordered feed, ranks starting at 1.
	Items []ScoredItem `json:"items"`

	// Metadata describes the generation.
	Metadata FeedMetadata `json:"metadata"`

	// NextCursor is an opaque pagination cursor, present when more items
	// may follow.
	NextCursor string `json:"next_cursor,omitempty"`
}

// Request is one feed generation request, already validated by the caller
// surface.
type Request struct {
	// UserID is the requesting user.
	UserID string `json:"user_id"`

	// FeedType is the requested feed type.
	FeedType string `json:"feed_type"`

	// PageSize is the requested item count; the engine clamps it to the
	// platform maximum.
	PageSize int `json:"page_size,omitempty"`

	// Cursor resumes a previous feed, if set.
	Cursor string `json:"cursor,omitempty"`

	// Context carries the raw request-time attributes the resolver turns
	// into a UserContext.
	Context RawContext `json:"context,omitempty"`
}

// CandidateSupplier provides candidate items for ranking. ListCandidates
// honors ctx cancellation; a timeout routes the request into the fallback
// path rather than surfacing an error.
type CandidateSupplier interface {
	// ListCandidates returns up to limit candidates for a user and feed
	// type.
	ListCandidates(ctx context.Context, userID, feedType string, limit int) ([]CandidateItem, error)

	// Ping checks supplier health. Used by fallback recovery probes.
	Ping(ctx context.Context) error
}

// ProfileSource supplies stored user profiles. Lookups must be
// non-blocking; the resolver runs on the request path with no timeout of
// its own.
type ProfileSource interface {
	// Profile returns the stored profile, or ok=false for unknown users.
	Profile(userID string) (*Profile, bool)
}

// Scorer computes one item's score. Implementations must be pure:
// identical inputs yield bit-identical breakdowns, with no side effects.
type Scorer interface {
	// Score returns the itemized score for an item in context. An error
	// marks a scoring fault; the engine drops the item and continues.
	Score(item *CandidateItem, user *UserContext, weights Weights) (ScoreBreakdown, error)
}

// DiversityPolicy bounds author and topic concentration for one request.
// The configured defaults may be overridden per request by experiment
// variant parameters.
type DiversityPolicy struct {
	// MaxPerAuthor caps items per author.
	MaxPerAuthor int `json:"max_per_author"`

	// MaxTopicShare caps one topic's fraction of the feed, in (0, 1].
	MaxTopicShare float64 `json:"max_topic_share"`

	// MinFeedSize is the floor below which caps relax to best effort.
	MinFeedSize int `json:"min_feed_size"`

	// BubbleTopN is how many leading items filter-bubble detection
	// inspects.
	BubbleTopN int `json:"bubble_top_n"`

	// BubbleTopK is how many of the user's strongest interests count as
	// in-profile.
	BubbleTopK int `json:"bubble_top_k"`

	// DiscoveryRatio is the maximum fraction of remaining slots reserved
	// for out-of-profile items when a bubble is detected, in [0, 1].
	DiscoveryRatio float64 `json:"discovery_ratio"`

	// DiscoveryQualityThreshold is the minimum BaseScore an
	// out-of-profile item needs to claim a reserved slot.
	DiscoveryQualityThreshold float64 `json:"discovery_quality_threshold"`
}

// DiversityReport describes what enforcement did, for logging and
// metrics.
type DiversityReport struct {
	// Deferred is how many items pass 1 pushed back for exceeding a cap.
	Deferred int `json:"deferred"`

	// Readmitted is how many deferred items pass 2 appended to reach the
	// target size.
	Readmitted int `json:"readmitted"`

	// Relaxed reports that caps could not be met and best-effort ordering
	// was served instead.
	Relaxed bool `json:"relaxed"`

	// BubbleDetected reports that the leading items all fell inside the
	// user's top interests.
	BubbleDetected bool `json:"bubble_detected"`

	// DiscoveryPicks is how many out-of-profile items filled reserved
	// slots.
	DiscoveryPicks int `json:"discovery_picks"`
}

// DiversityEnforcer reorders a scored list under a diversity policy.
// Implementations must be pure and must never return more than target
// items or items absent from the input.
type DiversityEnforcer interface {
	// Enforce returns at most target items from items.
	Enforce(items []ScoredItem, user *UserContext, target int, policy DiversityPolicy) ([]ScoredItem, DiversityReport)
}

// EventSink receives generation outcomes for downstream analytics.
// Implementations must return immediately; a slow or full sink drops
// events rather than delaying feed generation.
type EventSink interface {
	// FeedGenerated reports one completed generation, degraded or not.
	FeedGenerated(generated *GeneratedFeed)
}
