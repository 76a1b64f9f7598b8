// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/feedloom/feedloom/internal/experiment"
	"github.com/feedloom/feedloom/internal/feed"
)

// SchemaVersion is the current event schema version. Increment it when
// making breaking changes to an event payload.
const SchemaVersion = 1

// Topic roots. The full topic appends the feed type or assignment kind,
// so consumers can subscribe to one slice of the stream.
const (
	// TopicFeedGenerated prefixes feed generation outcomes:
	// feed.generated.<feed_type>.
	TopicFeedGenerated = "feed.generated"

	// TopicExperiment prefixes assignment decisions:
	// experiment.<assigned|excluded|forced>.
	TopicExperiment = "experiment"
)

// Event is anything the emitter can publish.
type Event interface {
	// Topic returns the subject the event is published under.
	Topic() string

	// ID returns the unique event ID, used as the message UUID and for
	// JetStream deduplication.
	ID() string
}

// FeedGeneratedEvent describes one completed feed generation, degraded
// or not. Item IDs are the served page only, not the full ranking.
type FeedGeneratedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	OccurredAt    time.Time `json:"occurred_at"`

	UserID           string   `json:"user_id"`
	FeedType         string   `json:"feed_type"`
	AlgorithmID      string   `json:"algorithm_id"`
	AlgorithmVersion string   `json:"algorithm_version"`
	ItemIDs          []string `json:"item_ids,omitempty"`
	CandidateCount   int      `json:"candidate_count"`
	ReturnedCount    int      `json:"returned_count"`
	DroppedItems     int      `json:"dropped_items,omitempty"`
	DurationMS       int64    `json:"duration_ms"`
	Degraded         bool     `json:"degraded,omitempty"`
	DegradedCause    string   `json:"degraded_cause,omitempty"`
	ExperimentID     string   `json:"experiment_id,omitempty"`
	VariantID        string   `json:"variant_id,omitempty"`
}

// NewFeedGeneratedEvent builds the event for one generation outcome.
func NewFeedGeneratedEvent(generated *feed.GeneratedFeed) *FeedGeneratedEvent {
	ev := &FeedGeneratedEvent{
		SchemaVersion:    SchemaVersion,
		EventID:          uuid.New().String(),
		OccurredAt:       time.Now().UTC(),
		UserID:           generated.UserID,
		FeedType:         generated.FeedType,
		AlgorithmID:      generated.Metadata.AlgorithmID,
		AlgorithmVersion: generated.Metadata.AlgorithmVersion,
		CandidateCount:   generated.Metadata.CandidateCount,
		ReturnedCount:    generated.Metadata.ReturnedCount,
		DroppedItems:     generated.Metadata.DroppedItems,
		DurationMS:       generated.Metadata.DurationMS,
		Degraded:         generated.Metadata.Degraded,
		DegradedCause:    generated.Metadata.DegradedCause,
	}

	if len(generated.Items) > 0 {
		ev.ItemIDs = make([]string, len(generated.Items))
		for i, item := range generated.Items {
			ev.ItemIDs[i] = item.Item.ID
		}
	}

	if exp := generated.Metadata.Experiment; exp != nil {
		ev.ExperimentID = exp.ExperimentID
		ev.VariantID = exp.VariantID
	}

	return ev
}

// Topic returns feed.generated.<feed_type>.
func (e *FeedGeneratedEvent) Topic() string {
	return TopicFeedGenerated + "." + e.FeedType
}

// ID implements Event.
func (e *FeedGeneratedEvent) ID() string {
	return e.EventID
}

// ExperimentEvent describes one assignment decision.
type ExperimentEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	OccurredAt    time.Time `json:"occurred_at"`

	Kind         string `json:"kind"`
	UserID       string `json:"user_id"`
	FeedType     string `json:"feed_type"`
	ExperimentID string `json:"experiment_id"`
	VariantID    string `json:"variant_id,omitempty"`
	IsControl    bool   `json:"is_control,omitempty"`
}

// NewExperimentEvent converts an assigner observation into its wire
// form.
func NewExperimentEvent(observation experiment.AssignmentEvent) *ExperimentEvent {
	return &ExperimentEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		OccurredAt:    time.Now().UTC(),
		Kind:          string(observation.Kind),
		UserID:        observation.UserID,
		FeedType:      observation.FeedType,
		ExperimentID:  observation.ExperimentID,
		VariantID:     observation.VariantID,
		IsControl:     observation.IsControl,
	}
}

// Topic returns experiment.<kind>.
func (e *ExperimentEvent) Topic() string {
	return TopicExperiment + "." + e.Kind
}

// ID implements Event.
func (e *ExperimentEvent) ID() string {
	return e.EventID
}

// Marshal encodes an event for publishing.
func Marshal(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", ev.ID(), err)
	}
	return data, nil
}

// DecodeFeedGenerated parses a feed.generated payload.
func DecodeFeedGenerated(data []byte) (*FeedGeneratedEvent, error) {
	var ev FeedGeneratedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal feed event: %w", err)
	}
	return &ev, nil
}

// DecodeExperiment parses an experiment.<kind> payload.
func DecodeExperiment(data []byte) (*ExperimentEvent, error) {
	var ev ExperimentEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal experiment event: %w", err)
	}
	return &ev, nil
}
