// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package supply

import (
	"context"
	"sync"
	"time"

	"github.com/feedloom/feedloom/internal/feed"
)

// Memory is a thread-safe in-memory candidate supplier. Items are held
// per feed type in insertion order; ranking order is the engine's
// concern.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]feed.CandidateItem

	// failure injection
	failErr error
	latency time.Duration
}

var _ feed.CandidateSupplier = (*Memory)(nil)

// NewMemory creates an empty supplier.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string][]feed.CandidateItem),
	}
}

// Put appends items to a feed type.
func (m *Memory) Put(feedType string, items ...feed.CandidateItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[feedType] = append(m.items[feedType], items...)
}

// Replace swaps a feed type's items wholesale.
func (m *Memory) Replace(feedType string, items []feed.CandidateItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[feedType] = append([]feed.CandidateItem(nil), items...)
}

// Len returns how many items a feed type holds.
func (m *Memory) Len(feedType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items[feedType])
}

// SetFailure makes subsequent calls fail with err. Pass nil to restore
// normal operation.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// SetLatency delays subsequent calls by d. Pass zero to remove the
// delay.
func (m *Memory) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// ListCandidates implements feed.CandidateSupplier. It returns a copy of
// up to limit items; limit <= 0 returns everything.
func (m *Memory) ListCandidates(ctx context.Context, userID, feedType string, limit int) ([]feed.CandidateItem, error) {
	if err := m.simulate(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.items[feedType]
	n := len(stored)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]feed.CandidateItem, n)
	copy(out, stored[:n])
	return out, nil
}

// Ping implements feed.CandidateSupplier.
func (m *Memory) Ping(ctx context.Context) error {
	return m.simulate(ctx)
}

// simulate applies the injected latency and failure, honoring ctx.
func (m *Memory) simulate(ctx context.Context) error {
	m.mu.RLock()
	failErr := m.failErr
	latency := m.latency
	m.mu.RUnlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if failErr != nil {
		return failErr
	}
	return ctx.Err()
}

// MemoryProfiles is a thread-safe in-memory profile source.
type MemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]*feed.Profile
}

var _ feed.ProfileSource = (*MemoryProfiles)(nil)

// NewMemoryProfiles creates an empty profile source.
func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{
		profiles: make(map[string]*feed.Profile),
	}
}

// Put stores a user's profile, replacing any previous one.
func (p *MemoryProfiles) Put(userID string, profile *feed.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[userID] = profile
}

// Profile implements feed.ProfileSource. The returned profile is shared;
// callers must treat it as read-only.
func (p *MemoryProfiles) Profile(userID string) (*feed.Profile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	profile, ok := p.profiles[userID]
	return profile, ok
}

// Len returns how many profiles are stored.
func (p *MemoryProfiles) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.profiles)
}
