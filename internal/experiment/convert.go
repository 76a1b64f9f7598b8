// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

import (
	"fmt"
	"math"

	"github.com/feedloom/feedloom/internal/config"
	"github.com/feedloom/feedloom/internal/metrics"
)

// FromConfig converts raw configured experiments into validated
// definitions. Invalid experiments are dropped and reported; a bad entry
// never takes down the valid ones, and param problems inside a variant
// degrade that field alone. The returned errors are configuration errors
// in the taxonomy sense: callers log them and carry on.
func FromConfig(raw []config.ExperimentConfig, allocationTolerance float64) ([]Definition, []error) {
	defs := make([]Definition, 0, len(raw))
	var errs []error
	seen := make(map[string]bool, len(raw))

	for _, rc := range raw {
		def, defErrs := convertOne(rc, allocationTolerance)
		errs = append(errs, defErrs...)
		if def == nil {
			continue
		}
		if seen[def.ID] {
			errs = append(errs, fmt.Errorf("experiment %q: duplicate id, keeping first", def.ID))
			continue
		}
		seen[def.ID] = true
		defs = append(defs, *def)
	}
	if len(errs) > 0 {
		metrics.ExperimentConfigErrors.Add(float64(len(errs)))
	}
	return defs, errs
}

// convertOne returns nil when the experiment is structurally invalid.
func convertOne(rc config.ExperimentConfig, tolerance float64) (*Definition, []error) {
	var errs []error

	if rc.ID == "" {
		return nil, []error{fmt.Errorf("experiment with empty id dropped")}
	}
	if len(rc.FeedTypes) == 0 {
		return nil, []error{fmt.Errorf("experiment %q: no feed types, dropped", rc.ID)}
	}
	if rc.TargetPercentage < 0 || rc.TargetPercentage > 100 {
		return nil, []error{fmt.Errorf("experiment %q: target percentage %g outside [0, 100], dropped",
			rc.ID, rc.TargetPercentage)}
	}
	if len(rc.Variants) == 0 {
		return nil, []error{fmt.Errorf("experiment %q: no variants, dropped", rc.ID)}
	}

	variants := make([]Variant, 0, len(rc.Variants))
	variantIDs := make(map[string]bool, len(rc.Variants))
	allocationSum := 0.0
	for _, rv := range rc.Variants {
		if rv.ID == "" {
			return nil, []error{fmt.Errorf("experiment %q: variant with empty id, dropped", rc.ID)}
		}
		if variantIDs[rv.ID] {
			return nil, []error{fmt.Errorf("experiment %q: duplicate variant %q, dropped", rc.ID, rv.ID)}
		}
		variantIDs[rv.ID] = true
		if rv.Allocation < 0 {
			return nil, []error{fmt.Errorf("experiment %q: variant %q has negative allocation, dropped",
				rc.ID, rv.ID)}
		}
		allocationSum += rv.Allocation

		params, paramErrs := ParseParams(rv.Params)
		for _, pe := range paramErrs {
			errs = append(errs, fmt.Errorf("experiment %q variant %q: %w", rc.ID, rv.ID, pe))
		}

		variants = append(variants, Variant{
			ID:         rv.ID,
			Name:       rv.Name,
			Allocation: rv.Allocation,
			IsControl:  rv.IsControl,
			Params:     params,
		})
	}

	if math.Abs(allocationSum-100) > tolerance {
		errs = append(errs, fmt.Errorf("experiment %q: allocations sum to %g, dropped", rc.ID, allocationSum))
		return nil, errs
	}

	def := &Definition{
		ID:               rc.ID,
		FeedTypes:        append([]string(nil), rc.FeedTypes...),
		TargetPercentage: rc.TargetPercentage,
		Variants:         variants,
	}
	return def, errs
}
