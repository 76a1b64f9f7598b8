// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package engine

import (
	"time"

	"github.com/feedloom/feedloom/internal/feed"
)

const (
	// AlgorithmID identifies the ranking algorithm family stamped into
	// feed metadata.
	AlgorithmID = "multi_signal"

	// AlgorithmVersion changes whenever scoring or diversity semantics
	// change, so downstream analysis can segment results by version.
	AlgorithmVersion = "1.0.0"
)

// Assembler windows a ranked list into one page and stamps the response
// metadata. Ranks are absolute positions in the full ranked list, so an
// item keeps its rank across pages of the same generation.
type Assembler struct {
	defaultPageSize int
	maxPageSize     int
}

// NewAssembler creates an assembler with the given page size bounds.
func NewAssembler(defaultPageSize, maxPageSize int) *Assembler {
	if maxPageSize < 1 {
		maxPageSize = 1
	}
	if defaultPageSize < 1 || defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}
	return &Assembler{
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// PageSize resolves the effective page size: the default when the
// request leaves it unset, clamped to the platform maximum otherwise.
func (a *Assembler) PageSize(requested int) int {
	switch {
	case requested <= 0:
		return a.defaultPageSize
	case requested > a.maxPageSize:
		return a.maxPageSize
	default:
		return requested
	}
}

// Assemble cuts one page out of ranked, assigns absolute ranks, and
// fills in the timing and pagination metadata. The meta argument
// carries the fields the caller already knows (counts, experiment,
// degradation); Assemble completes the rest.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (a *Assembler) Assemble(req feed.Request, cursor *feed.Cursor, ranked []feed.ScoredItem, meta feed.FeedMetadata, start time.Time) *feed.GeneratedFeed {
	pageSize := a.PageSize(req.PageSize)

	offset := 0
	if cursor != nil {
		offset = cursor.Rank
	}

	window := make([]feed.ScoredItem, 0, pageSize)
	if offset < len(ranked) {
		end := offset + pageSize
		if end > len(ranked) {
			end = len(ranked)
		}
		window = append(window, ranked[offset:end]...)
	}
	for i := range window {
		window[i].Rank = offset + i + 1
	}

	next := ""
	if len(window) > 0 && offset+len(window) < len(ranked) {
		last := window[len(window)-1]
		next = feed.EncodeCursor(&feed.Cursor{
			Rank:      last.Rank,
			Timestamp: last.Item.CreatedAt,
		})
	}

	meta.AlgorithmID = AlgorithmID
	meta.AlgorithmVersion = AlgorithmVersion
	meta.GeneratedAt = time.Now().UTC()
	meta.DurationMS = time.Since(start).Milliseconds()
	meta.ReturnedCount = len(window)

	return &feed.GeneratedFeed{
		UserID:     req.UserID,
		FeedType:   req.FeedType,
		Items:      window,
		Metadata:   meta,
		NextCursor: next,
	}
}
