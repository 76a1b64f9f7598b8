// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

import "fmt"

// Params holds a variant's typed parameter overrides. Nil fields mean "no
// override"; the scoring and diversity baselines apply. The control
// variant of a well-formed experiment carries no overrides.
type Params struct {
	RecencyWeight    *float64 `json:"recency_weight,omitempty"`
	PopularityWeight *float64 `json:"popularity_weight,omitempty"`
	RelevanceWeight  *float64 `json:"relevance_weight,omitempty"`

	MaxPerAuthor   *int     `json:"max_per_author,omitempty"`
	MaxTopicShare  *float64 `json:"max_topic_share,omitempty"`
	DiscoveryRatio *float64 `json:"discovery_ratio,omitempty"`
}

// IsZero reports whether no overrides are set.
func (p Params) IsZero() bool {
	return p.RecencyWeight == nil && p.PopularityWeight == nil && p.RelevanceWeight == nil &&
		p.MaxPerAuthor == nil && p.MaxTopicShare == nil && p.DiscoveryRatio == nil
}

// ParseParams converts a raw parameter map into typed overrides. Each
// field is validated independently: a malformed or out-of-range value is
// skipped and reported, and the remaining fields still apply. Unknown keys
// are reported but never fail the variant.
func ParseParams(raw map[string]interface{}) (Params, []error) {
	var p Params
	var errs []error

	for key, value := range raw {
		switch key {
		case "recency_weight":
			p.RecencyWeight = floatParam(key, value, 0, 1, &errs)
		case "popularity_weight":
			p.PopularityWeight = floatParam(key, value, 0, 1, &errs)
		case "relevance_weight":
			p.RelevanceWeight = floatParam(key, value, 0, 1, &errs)
		case "max_per_author":
			p.MaxPerAuthor = intParam(key, value, 1, 100, &errs)
		case "max_topic_share":
			p.MaxTopicShare = floatParam(key, value, 0, 1, &errs)
		case "discovery_ratio":
			p.DiscoveryRatio = floatParam(key, value, 0, 1, &errs)
		default:
			errs = append(errs, fmt.Errorf("unknown param %q ignored", key))
		}
	}
	return p, errs
}

// floatParam coerces a YAML or JSON scalar into a float override. YAML
// decodes whole numbers as int, JSON as float64; both are accepted.
func floatParam(key string, value interface{}, min, max float64, errs *[]error) *float64 {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		*errs = append(*errs, fmt.Errorf("param %q: expected number, got %T", key, value))
		return nil
	}
	if f < min || f > max {
		*errs = append(*errs, fmt.Errorf("param %q: %g outside [%g, %g]", key, f, min, max))
		return nil
	}
	return &f
}

func intParam(key string, value interface{}, min, max int, errs *[]error) *int {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != float64(int(v)) {
			*errs = append(*errs, fmt.Errorf("param %q: expected integer, got %g", key, v))
			return nil
		}
		n = int(v)
	default:
		*errs = append(*errs, fmt.Errorf("param %q: expected integer, got %T", key, value))
		return nil
	}
	if n < min || n > max {
		*errs = append(*errs, fmt.Errorf("param %q: %d outside [%d, %d]", key, n, min, max))
		return nil
	}
	return &n
}
