// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

import (
	"context"
	"fmt"
	"sync"
)

// Store supplies experiment definitions for snapshot refresh. A failing
// store is tolerated: the assigner keeps serving its last good snapshot.
type Store interface {
	Definitions(ctx context.Context) ([]Definition, error)
}

// MemoryStore is a mutex-guarded in-memory Store. It backs deployments
// whose experiments come from the config file, and doubles as the
// read/write surface for the experiments API.
type MemoryStore struct {
	mu   sync.RWMutex
	defs []Definition
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store seeded with the given definitions.
func NewMemoryStore(defs []Definition) *MemoryStore {
	return &MemoryStore{defs: append([]Definition(nil), defs...)}
}

// Definitions returns a copy of the stored definitions.
func (m *MemoryStore) Definitions(_ context.Context) ([]Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Definition(nil), m.defs...), nil
}

// Replace swaps the full definition set, preserving declared order.
func (m *MemoryStore) Replace(defs []Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs = append([]Definition(nil), defs...)
}

// Put inserts or updates one definition, keeping its position on update.
func (m *MemoryStore) Put(def Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.defs {
		if m.defs[i].ID == def.ID {
			m.defs[i] = def
			return
		}
	}
	m.defs = append(m.defs, def)
}

// Delete removes a definition by id.
func (m *MemoryStore) Delete(experimentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.defs {
		if m.defs[i].ID == experimentID {
			m.defs = append(m.defs[:i], m.defs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("experiment %q not found", experimentID)
}
