// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are checked in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/feedloom/config.yaml",
	"/etc/feedloom/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths lists config keys that accept comma-separated values
// when set from the environment.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"feed.feed_types",
}

// LoadWithKoanf loads configuration in three layers of increasing
// priority: built-in defaults, an optional YAML file, then environment
// variables. The merged result is validated before being returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	processSliceFields(k)

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the config file path, or "" when none exists.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envVarMapping maps flat environment variable names (lowercased) to
// nested config keys. Unmapped variables are ignored so unrelated
// environment noise cannot leak into the configuration.
var envVarMapping = map[string]string{
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",
	"rate_limit_requests":   "api.rate_limit_requests",
	"rate_limit_window":     "api.rate_limit_window",
	"rate_limit_disabled":   "api.rate_limit_disabled",
	"cors_origins":          "api.cors_origins",

	"feed_types":             "feed.feed_types",
	"feed_recency_weight":    "feed.recency_weight",
	"feed_popularity_weight": "feed.popularity_weight",
	"feed_relevance_weight":  "feed.relevance_weight",
	"feed_max_candidates":    "feed.max_candidates",
	"feed_candidate_timeout": "feed.candidate_timeout",
	"feed_max_rps":           "feed.max_generations_per_second",
	"feed_burst":             "feed.generation_burst",

	"diversity_max_per_author":    "diversity.max_per_author",
	"diversity_max_topic_share":   "diversity.max_topic_share",
	"diversity_min_feed_size":     "diversity.min_feed_size",
	"diversity_bubble_top_n":      "diversity.bubble_top_n",
	"diversity_bubble_top_k":      "diversity.bubble_top_k",
	"diversity_discovery_ratio":   "diversity.discovery_ratio",
	"diversity_discovery_quality": "diversity.discovery_quality_threshold",

	"experiments_refresh_interval":     "experiments.refresh_interval",
	"experiments_allocation_tolerance": "experiments.allocation_tolerance",

	"fallback_recovery_threshold": "fallback.recovery_threshold",
	"fallback_probe_interval":     "fallback.probe_interval",
	"fallback_latency_ceiling":    "fallback.latency_ceiling",
	"safe_feed_capacity":          "fallback.safe_feed_capacity",
	"breaker_max_requests":        "fallback.breaker_max_requests",
	"breaker_interval":            "fallback.breaker_interval",
	"breaker_timeout":             "fallback.breaker_timeout",
	"breaker_failure_threshold":   "fallback.breaker_failure_threshold",
	"breaker_min_requests":        "fallback.breaker_min_requests",

	"events_buffer_size": "events.buffer_size",
	"nats_enabled":       "events.nats_enabled",
	"nats_url":           "events.nats_url",
	"nats_stream":        "events.nats_stream",

	"seed_demo_data":  "supply.seed_demo_data",
	"demo_item_count": "supply.demo_item_count",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its config key.
// Returning "" skips the variable.
func envTransformFunc(s string) string {
	return envVarMapping[strings.ToLower(s)]
}

// processSliceFields splits comma-separated string values into slices for
// keys that hold lists, since env vars arrive as flat strings.
func processSliceFields(k *koanf.Koanf) {
	for _, path := range sliceConfigPaths {
		raw := k.Get(path)
		s, ok := raw.(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		_ = k.Set(path, values)
	}
}

// defaultConfig returns the built-in defaults documented on the config
// struct fields.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8420,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize:   20,
			MaxPageSize:       100,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Feed: FeedConfig{
			FeedTypes:        []string{"home", "explore"},
			RecencyWeight:    0.5,
			PopularityWeight: 0.3,
			RelevanceWeight:  0.2,
			MaxCandidates:    500,
			CandidateTimeout: 800 * time.Millisecond,
			GenerationBurst:  50,
		},
		Diversity: DiversityConfig{
			MaxPerAuthor:              3,
			MaxTopicShare:             0.5,
			MinFeedSize:               5,
			BubbleTopN:                10,
			BubbleTopK:                3,
			DiscoveryRatio:            0.3,
			DiscoveryQualityThreshold: 0.6,
		},
		Experiments: ExperimentsConfig{
			RefreshInterval:     30 * time.Second,
			AllocationTolerance: 0.01,
		},
		Fallback: FallbackConfig{
			RecoveryThreshold:       3,
			ProbeInterval:           5 * time.Second,
			LatencyCeiling:          2 * time.Second,
			SafeFeedCapacity:        200,
			BreakerMaxRequests:      3,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 0.6,
			BreakerMinRequests:      10,
		},
		Events: EventsConfig{
			BufferSize: 1024,
			NATSURL:    "nats://127.0.0.1:4222",
			NATSStream: "FEED_EVENTS",
		},
		Supply: SupplyConfig{
			DemoItemCount: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ActiveConfigFile returns the config file path LoadWithKoanf would use,
// or "" when configuration comes from defaults and environment only.
func ActiveConfigFile() string {
	return findConfigFile()
}

// WatchConfigFile invokes cb whenever the config file at path changes.
// Used to hot-reload experiment definitions without a restart.
func WatchConfigFile(path string, cb func()) error {
	f := file.Provider(path)
	return f.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		cb()
	})
}
