// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

import "time"

// Snapshot is an immutable view of the active experiment definitions,
// indexed by feed type in declared order. Assigners swap snapshots
// atomically; readers holding an old snapshot keep a consistent view
// until their request finishes.
type Snapshot struct {
	definitions []Definition
	byFeedType  map[string][]int
	loadedAt    time.Time
}

// NewSnapshot builds a snapshot from already validated definitions.
func NewSnapshot(defs []Definition) *Snapshot {
	s := &Snapshot{
		definitions: append([]Definition(nil), defs...),
		byFeedType:  make(map[string][]int),
		loadedAt:    time.Now().UTC(),
	}
	for i := range s.definitions {
		for _, ft := range s.definitions[i].FeedTypes {
			s.byFeedType[ft] = append(s.byFeedType[ft], i)
		}
	}
	return s
}

// EmptySnapshot returns a snapshot with no experiments. Used before the
// first successful load so assignment never dereferences nil.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil)
}

// ForFeedType returns the experiments covering a feed type in declared
// order. The returned definitions must not be mutated.
func (s *Snapshot) ForFeedType(feedType string) []*Definition {
	idxs := s.byFeedType[feedType]
	if len(idxs) == 0 {
		return nil
	}
	defs := make([]*Definition, len(idxs))
	for i, idx := range idxs {
		defs[i] = &s.definitions[idx]
	}
	return defs
}

// Lookup returns the definition with the given id, or nil.
func (s *Snapshot) Lookup(experimentID string) *Definition {
	for i := range s.definitions {
		if s.definitions[i].ID == experimentID {
			return &s.definitions[i]
		}
	}
	return nil
}

// All returns the definitions in declared order. The slice is a copy; the
// definitions are shared and must not be mutated.
func (s *Snapshot) All() []Definition {
	return append([]Definition(nil), s.definitions...)
}

// Len returns the number of active experiments.
func (s *Snapshot) Len() int {
	return len(s.definitions)
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}
