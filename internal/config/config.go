// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

// Package config provides layered configuration loading for Feedloom.
//
// Configuration is assembled from three sources in increasing priority:
// built-in defaults, an optional YAML config file, and environment
// variables. See LoadWithKoanf for the loading pipeline.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Feedloom service.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	API         APIConfig         `koanf:"api"`
	Feed        FeedConfig        `koanf:"feed"`
	Diversity   DiversityConfig   `koanf:"diversity"`
	Experiments ExperimentsConfig `koanf:"experiments"`
	Fallback    FallbackConfig    `koanf:"fallback"`
	Events      EventsConfig      `koanf:"events"`
	Supply      SupplyConfig      `koanf:"supply"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port.
	// Default: 8420
	Port int `koanf:"port"`

	// Host is the HTTP listen address.
	// Default: 0.0.0.0
	Host string `koanf:"host"`

	// Timeout is the per-request read/write timeout.
	// Default: 30s
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// APIConfig holds settings for the HTTP API surface.
type APIConfig struct {
	// DefaultPageSize is used when a request omits page_size.
	// Default: 20
	DefaultPageSize int `koanf:"default_page_size"`

	// MaxPageSize is the hard platform-wide page size ceiling, enforced
	// regardless of what the caller requests.
	// Default: 100
	MaxPageSize int `koanf:"max_page_size"`

	// RateLimitRequests is the per-IP request budget per window.
	// Default: 100
	RateLimitRequests int `koanf:"rate_limit_requests"`

	// RateLimitWindow is the rate limiting window.
	// Default: 1m
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// RateLimitDisabled turns off HTTP rate limiting entirely.
	// Default: false
	RateLimitDisabled bool `koanf:"rate_limit_disabled"`

	// CORSOrigins lists allowed CORS origins.
	// Default: empty
	CORSOrigins []string `koanf:"cors_origins"`
}

// FeedConfig holds feed generation settings.
type FeedConfig struct {
	// FeedTypes lists the feed types this deployment serves. Requests for
	// any other feed type are rejected as invalid.
	// Default: home, explore
	FeedTypes []string `koanf:"feed_types"`

	// RecencyWeight is the baseline recency weight.
	// Default: 0.5
	RecencyWeight float64 `koanf:"recency_weight"`

	// PopularityWeight is the baseline popularity weight.
	// Default: 0.3
	PopularityWeight float64 `koanf:"popularity_weight"`

	// RelevanceWeight is the baseline topic-relevance weight.
	// Default: 0.2
	RelevanceWeight float64 `koanf:"relevance_weight"`

	// MaxCandidates caps how many candidates are requested from the
	// content supplier per generation.
	// Default: 500
	MaxCandidates int `koanf:"max_candidates"`

	// CandidateTimeout bounds candidate retrieval; on expiry the request
	// is served from the fallback path.
	// Default: 800ms
	CandidateTimeout time.Duration `koanf:"candidate_timeout"`

	// MaxGenerationsPerSecond is the load-shedding rate for full-path
	// generations. Requests beyond it are served the safe feed.
	// 0 disables load shedding.
	// Default: 0
	MaxGenerationsPerSecond float64 `koanf:"max_generations_per_second"`

	// GenerationBurst is the burst allowance for the load-shedding limiter.
	// Default: 50
	GenerationBurst int `koanf:"generation_burst"`
}

// DiversityConfig holds the diversity enforcement policy.
type DiversityConfig struct {
	// MaxPerAuthor caps how many items one author may hold in a feed.
	// Default: 3
	MaxPerAuthor int `koanf:"max_per_author"`

	// MaxTopicShare caps the fraction of a feed one topic may occupy.
	// Default: 0.5
	MaxTopicShare float64 `koanf:"max_topic_share"`

	// MinFeedSize is the floor below which diversity caps are relaxed
	// rather than truncating the feed.
	// Default: 5
	MinFeedSize int `koanf:"min_feed_size"`

	// BubbleTopN is how many top-ranked items are inspected for
	// filter-bubble detection.
	// Default: 10
	BubbleTopN int `koanf:"bubble_top_n"`

	// BubbleTopK is how many of the user's strongest interests define the
	// in-profile topic set.
	// Default: 3
	BubbleTopK int `koanf:"bubble_top_k"`

	// DiscoveryRatio is the maximum fraction of remaining slots reserved
	// for out-of-profile candidates when a bubble is detected.
	// Default: 0.3
	DiscoveryRatio float64 `koanf:"discovery_ratio"`

	// DiscoveryQualityThreshold is the minimum base quality an
	// out-of-profile candidate needs to fill a reserved slot.
	// Default: 0.6
	DiscoveryQualityThreshold float64 `koanf:"discovery_quality_threshold"`
}

// ExperimentsConfig holds experiment assignment settings and the statically
// configured experiment definitions.
type ExperimentsConfig struct {
	// RefreshInterval is how often the definition snapshot is refreshed
	// from the configuration store.
	// Default: 30s
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// AllocationTolerance is the accepted deviation of a variant
	// allocation sum from 100.
	// Default: 0.01
	AllocationTolerance float64 `koanf:"allocation_tolerance"`

	// Definitions lists experiments configured in the YAML file. They
	// seed the in-memory experiment store at startup and on hot reload.
	Definitions []ExperimentConfig `koanf:"definitions"`
}

// ExperimentConfig is the raw YAML shape of one experiment definition.
// Validation and parameter typing happen in the experiment package;
// malformed entries are dropped with a logged configuration error rather
// than failing startup.
type ExperimentConfig struct {
	ID               string          `koanf:"id"`
	FeedTypes        []string        `koanf:"feed_types"`
	TargetPercentage float64         `koanf:"target_percentage"`
	Variants         []VariantConfig `koanf:"variants"`
}

// VariantConfig is the raw YAML shape of one experiment variant.
type VariantConfig struct {
	ID         string                 `koanf:"id"`
	Name       string                 `koanf:"name"`
	Allocation float64                `koanf:"allocation"`
	IsControl  bool                   `koanf:"is_control"`
	Params     map[string]interface{} `koanf:"params"`
}

// FallbackConfig holds fallback controller and circuit breaker settings.
type FallbackConfig struct {
	// RecoveryThreshold is the number of consecutive successful full-path
	// generations needed to move RECOVERING back to HEALTHY.
	// Default: 3
	RecoveryThreshold int `koanf:"recovery_threshold"`

	// ProbeInterval is how often the supplier is probed while DEGRADED.
	// Default: 5s
	ProbeInterval time.Duration `koanf:"probe_interval"`

	// LatencyCeiling bounds degraded-path response time; safe feeds are
	// assembled from memory and must fit well inside it.
	// Default: 2s
	LatencyCeiling time.Duration `koanf:"latency_ceiling"`

	// SafeFeedCapacity is how many items the safe-feed cache retains.
	// Default: 200
	SafeFeedCapacity int `koanf:"safe_feed_capacity"`

	// BreakerMaxRequests is how many requests pass through a half-open
	// breaker.
	// Default: 3
	BreakerMaxRequests uint32 `koanf:"breaker_max_requests"`

	// BreakerInterval is the closed-state counting window.
	// Default: 1m
	BreakerInterval time.Duration `koanf:"breaker_interval"`

	// BreakerTimeout is how long an open breaker waits before half-open.
	// Default: 30s
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`

	// BreakerFailureThreshold is the failure ratio that trips the breaker.
	// Default: 0.6
	BreakerFailureThreshold float64 `koanf:"breaker_failure_threshold"`

	// BreakerMinRequests is the minimum sample size before the failure
	// ratio is evaluated.
	// Default: 10
	BreakerMinRequests uint32 `koanf:"breaker_min_requests"`
}

// EventsConfig holds event emitter settings.
type EventsConfig struct {
	// BufferSize is the emitter queue depth; events beyond it are dropped
	// and counted rather than blocking generation.
	// Default: 1024
	BufferSize int `koanf:"buffer_size"`

	// NATSEnabled switches event publishing to NATS JetStream. Requires a
	// binary built with the nats build tag; otherwise the in-process bus
	// is used and a warning is logged.
	// Default: false
	NATSEnabled bool `koanf:"nats_enabled"`

	// NATSURL is the NATS server URL.
	// Default: nats://127.0.0.1:4222
	NATSURL string `koanf:"nats_url"`

	// NATSStream is the JetStream stream name for feed events.
	// Default: FEED_EVENTS
	NATSStream string `koanf:"nats_stream"`
}

// SupplyConfig holds settings for the in-memory candidate supplier.
type SupplyConfig struct {
	// SeedDemoData populates the in-memory supplier with generated demo
	// content at startup. Intended for local development.
	// Default: false
	SeedDemoData bool `koanf:"seed_demo_data"`

	// DemoItemCount is how many demo items to generate per feed type.
	// Default: 200
	DemoItemCount int `koanf:"demo_item_count"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file:line in log output.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateDiversity(); err != nil {
		return err
	}
	if err := c.validateFallback(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be at least 1, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE (%d) must be at least API_DEFAULT_PAGE_SIZE (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	return nil
}

func (c *Config) validateFeed() error {
	if len(c.Feed.FeedTypes) == 0 {
		return fmt.Errorf("FEED_TYPES must list at least one feed type")
	}
	if c.Feed.RecencyWeight < 0 || c.Feed.PopularityWeight < 0 || c.Feed.RelevanceWeight < 0 {
		return fmt.Errorf("feed weights must be non-negative")
	}
	if c.Feed.MaxCandidates < 1 {
		return fmt.Errorf("FEED_MAX_CANDIDATES must be at least 1, got %d", c.Feed.MaxCandidates)
	}
	if c.Feed.CandidateTimeout <= 0 {
		return fmt.Errorf("FEED_CANDIDATE_TIMEOUT must be positive, got %s", c.Feed.CandidateTimeout)
	}
	return nil
}

func (c *Config) validateDiversity() error {
	if c.Diversity.MaxPerAuthor < 1 {
		return fmt.Errorf("DIVERSITY_MAX_PER_AUTHOR must be at least 1, got %d", c.Diversity.MaxPerAuthor)
	}
	if c.Diversity.MaxTopicShare <= 0 || c.Diversity.MaxTopicShare > 1 {
		return fmt.Errorf("DIVERSITY_MAX_TOPIC_SHARE must be in (0, 1], got %g", c.Diversity.MaxTopicShare)
	}
	if c.Diversity.DiscoveryRatio < 0 || c.Diversity.DiscoveryRatio > 1 {
		return fmt.Errorf("DIVERSITY_DISCOVERY_RATIO must be in [0, 1], got %g", c.Diversity.DiscoveryRatio)
	}
	return nil
}

func (c *Config) validateFallback() error {
	if c.Fallback.RecoveryThreshold < 1 {
		return fmt.Errorf("FALLBACK_RECOVERY_THRESHOLD must be at least 1, got %d", c.Fallback.RecoveryThreshold)
	}
	if c.Fallback.LatencyCeiling <= 0 {
		return fmt.Errorf("FALLBACK_LATENCY_CEILING must be positive, got %s", c.Fallback.LatencyCeiling)
	}
	if c.Fallback.BreakerFailureThreshold <= 0 || c.Fallback.BreakerFailureThreshold > 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be in (0, 1], got %g", c.Fallback.BreakerFailureThreshold)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// KnownFeedType reports whether ft is one of the configured feed types.
func (c *Config) KnownFeedType(ft string) bool {
	for _, known := range c.Feed.FeedTypes {
		if known == ft {
			return true
		}
	}
	return false
}
