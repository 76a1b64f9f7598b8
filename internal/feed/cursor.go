// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package feed

import (
	"encoding/base64"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Cursor resumes a paginated feed. Rank is the last delivered item's
// 1-based rank; Timestamp is that item's publication time. Clients treat
// the encoded form as opaque.
type Cursor struct {
	Rank      int       `json:"rank"`
	Timestamp time.Time `json:"ts"`
}

// EncodeCursor encodes a cursor for API transport.
func EncodeCursor(cursor *Cursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		// Unreachable with a plain struct; an empty cursor just ends
		// pagination early.
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor decodes an encoded cursor. A cursor that does not decode
// or carries a negative rank is a request error, not a degradation.
func DecodeCursor(encoded string) (*Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor JSON: %w", err)
	}
	if cursor.Rank < 0 {
		return nil, fmt.Errorf("invalid cursor rank %d", cursor.Rank)
	}

	return &cursor, nil
}
