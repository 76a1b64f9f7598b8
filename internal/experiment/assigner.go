// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/feedloom/feedloom/internal/logging"
	"github.com/feedloom/feedloom/internal/metrics"
)

// Assigner resolves experiment assignments against an atomically swapped
// definition snapshot. All methods are safe for concurrent use; Assign and
// Peek never block and never fail.
type Assigner struct {
	snap atomic.Pointer[Snapshot]

	mu     sync.RWMutex
	forced map[string]map[string]string // userID -> experimentID -> variantID

	obs    Observer
	logger zerolog.Logger
}

// NewAssigner returns an assigner with an empty snapshot. obs may be nil.
func NewAssigner(obs Observer) *Assigner {
	a := &Assigner{
		forced: make(map[string]map[string]string),
		obs:    obs,
		logger: logging.WithComponent("experiment"),
	}
	a.snap.Store(EmptySnapshot())
	return a
}

// Swap installs a new snapshot. In-flight assignments finish against the
// snapshot they loaded.
func (a *Assigner) Swap(s *Snapshot) {
	if s == nil {
		s = EmptySnapshot()
	}
	a.snap.Store(s)
	metrics.ExperimentsActive.Set(float64(s.Len()))
}

// Snapshot returns the current snapshot.
func (a *Assigner) Snapshot() *Snapshot {
	return a.snap.Load()
}

// Refresh rebuilds the snapshot from the store. On store failure the
// previous snapshot stays active and the error is returned for logging.
func (a *Assigner) Refresh(ctx context.Context, store Store) error {
	defs, err := store.Definitions(ctx)
	if err != nil {
		metrics.SnapshotRefreshes.WithLabelValues("error").Inc()
		a.logger.Warn().Err(err).Msg("Experiment refresh failed, keeping previous snapshot")
		return err
	}
	a.Swap(NewSnapshot(defs))
	metrics.SnapshotRefreshes.WithLabelValues("ok").Inc()
	return nil
}

// Assign resolves the user's assignment for a feed type, emitting
// assignment and exclusion events. It returns nil when no experiment
// covers the feed type or the user hashes out of all of them.
//
// At most one experiment applies per feed type: experiments are evaluated
// in declared order and the first one that includes the user wins.
// Operator overrides installed with Force win over hashing regardless of
// declared order.
func (a *Assigner) Assign(userID, feedType string) *AssignmentResult {
	return a.assign(userID, feedType, true)
}

// Peek resolves the assignment without emitting events or metrics. Used
// by read-only inspection endpoints so that looking up an assignment does
// not inflate exposure counts.
func (a *Assigner) Peek(userID, feedType string) *AssignmentResult {
	return a.assign(userID, feedType, false)
}

func (a *Assigner) assign(userID, feedType string, observe bool) *AssignmentResult {
	snap := a.snap.Load()
	defs := snap.ForFeedType(feedType)
	if len(defs) == 0 {
		return nil
	}

	for _, def := range defs {
		if res := a.forcedResult(userID, def); res != nil {
			if observe {
				metrics.RecordAssignment(def.ID, res.VariantID)
				a.observe(AssignmentEvent{
					Kind:         EventForced,
					UserID:       userID,
					FeedType:     feedType,
					ExperimentID: def.ID,
					VariantID:    res.VariantID,
					IsControl:    res.IsControl,
				})
			}
			return res
		}
	}

	for _, def := range defs {
		if InclusionBucket(userID, def.ID) >= def.TargetPercentage {
			if observe {
				metrics.RecordExclusion(def.ID)
				a.observe(AssignmentEvent{
					Kind:         EventExcluded,
					UserID:       userID,
					FeedType:     feedType,
					ExperimentID: def.ID,
				})
			}
			continue
		}

		v := pickVariant(def.Variants, VariantBucket(userID, def.ID))
		if v == nil {
			continue
		}
		res := &AssignmentResult{
			ExperimentID: def.ID,
			VariantID:    v.ID,
			VariantName:  v.Name,
			IsControl:    v.IsControl,
			Params:       v.Params,
		}
		if observe {
			metrics.RecordAssignment(def.ID, v.ID)
			a.observe(AssignmentEvent{
				Kind:         EventAssigned,
				UserID:       userID,
				FeedType:     feedType,
				ExperimentID: def.ID,
				VariantID:    v.ID,
				IsControl:    v.IsControl,
			})
		}
		return res
	}
	return nil
}

// Force installs an operator override assigning the user to a specific
// variant. The experiment and variant must exist in the current snapshot.
func (a *Assigner) Force(userID, experimentID, variantID string) error {
	if userID == "" {
		return fmt.Errorf("user id required")
	}
	def := a.snap.Load().Lookup(experimentID)
	if def == nil {
		return fmt.Errorf("experiment %q not found", experimentID)
	}
	if variantOf(def, variantID) == nil {
		return fmt.Errorf("experiment %q has no variant %q", experimentID, variantID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.forced[userID] == nil {
		a.forced[userID] = make(map[string]string)
	}
	a.forced[userID][experimentID] = variantID

	a.logger.Info().
		Str("user_id", userID).
		Str("experiment_id", experimentID).
		Str("variant_id", variantID).
		Msg("Forced assignment installed")
	return nil
}

// Unforce removes an operator override. Removing a missing override is a
// no-op.
func (a *Assigner) Unforce(userID, experimentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m := a.forced[userID]; m != nil {
		delete(m, experimentID)
		if len(m) == 0 {
			delete(a.forced, userID)
		}
	}
}

// forcedResult returns the override result for a definition, or nil. An
// override pointing at a variant that no longer exists after a definition
// change is dropped.
func (a *Assigner) forcedResult(userID string, def *Definition) *AssignmentResult {
	a.mu.RLock()
	variantID, ok := a.forced[userID][def.ID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	v := variantOf(def, variantID)
	if v == nil {
		a.Unforce(userID, def.ID)
		a.logger.Warn().
			Str("user_id", userID).
			Str("experiment_id", def.ID).
			Str("variant_id", variantID).
			Msg("Dropping forced assignment for vanished variant")
		return nil
	}
	return &AssignmentResult{
		ExperimentID: def.ID,
		VariantID:    v.ID,
		VariantName:  v.Name,
		IsControl:    v.IsControl,
		Forced:       true,
		Params:       v.Params,
	}
}

func (a *Assigner) observe(ev AssignmentEvent) {
	if a.obs != nil {
		a.obs(ev)
	}
}

func variantOf(def *Definition, variantID string) *Variant {
	for i := range def.Variants {
		if def.Variants[i].ID == variantID {
			return &def.Variants[i]
		}
	}
	return nil
}
