// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

// Definition describes one experiment. Definitions are value types; once
// built into a Snapshot they are never mutated.
type Definition struct {
	// ID uniquely identifies the experiment across the deployment.
	ID string `json:"id"`

	// FeedTypes lists the feed types this experiment applies to.
	FeedTypes []string `json:"feed_types"`

	// TargetPercentage is the share of the user population included in
	// the experiment, in [0, 100].
	TargetPercentage float64 `json:"target_percentage"`

	// Variants in declared order. Allocations sum to 100 within the
	// configured tolerance; the last variant absorbs rounding remainder.
	Variants []Variant `json:"variants"`
}

// Variant is one arm of an experiment.
type Variant struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Allocation float64 `json:"allocation"`
	IsControl  bool    `json:"is_control"`
	Params     Params  `json:"params"`
}

// AppliesTo reports whether the experiment covers the given feed type.
func (d *Definition) AppliesTo(feedType string) bool {
	for _, ft := range d.FeedTypes {
		if ft == feedType {
			return true
		}
	}
	return false
}

// ControlVariant returns the control arm, or nil when none is flagged.
func (d *Definition) ControlVariant() *Variant {
	for i := range d.Variants {
		if d.Variants[i].IsControl {
			return &d.Variants[i]
		}
	}
	return nil
}

// AssignmentResult is the outcome of assigning a user to an experiment.
// Results are derived, never stored; recomputing one for the same user and
// definition yields an identical result.
type AssignmentResult struct {
	ExperimentID string `json:"experiment_id"`
	VariantID    string `json:"variant_id"`
	VariantName  string `json:"variant_name,omitempty"`
	IsControl    bool   `json:"is_control"`

	// Forced marks an operator override that bypassed hashing.
	Forced bool `json:"forced,omitempty"`

	// Params are the variant's resolved parameter overrides.
	Params Params `json:"params"`
}

// AssignmentEventKind classifies assignment observations.
type AssignmentEventKind string

const (
	// EventAssigned means the user hashed into the experiment and
	// received a variant.
	EventAssigned AssignmentEventKind = "assigned"

	// EventExcluded means the user hashed outside the target percentage.
	EventExcluded AssignmentEventKind = "excluded"

	// EventForced means an operator override determined the variant.
	EventForced AssignmentEventKind = "forced"
)

// AssignmentEvent describes one assignment decision for downstream
// analytics. VariantID is empty for exclusions.
type AssignmentEvent struct {
	Kind         AssignmentEventKind
	UserID       string
	FeedType     string
	ExperimentID string
	VariantID    string
	IsControl    bool
}

// Observer receives assignment events. Implementations must not block;
// the assigner calls them inline on the request path.
type Observer func(AssignmentEvent)
