// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package supply

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/feedloom/feedloom/internal/feed"
	"github.com/feedloom/feedloom/internal/logging"
)

// demoSeed fixes the generator so repeated boots produce identical demo
// content. Item ages are relative to seeding time.
const demoSeed = 20260801

// defaultDemoItems is used when the configured count is missing.
const defaultDemoItems = 200

var demoTopics = []string{
	"technology", "science", "music", "sports", "gaming",
	"food", "travel", "fitness", "finance", "art",
	"movies", "news", "photography", "books", "fashion",
}

// demoContentTypes is a weighted pick list; text and image dominate.
var demoContentTypes = []feed.ContentType{
	feed.ContentText, feed.ContentText, feed.ContentText,
	feed.ContentImage, feed.ContentImage,
	feed.ContentVideo, feed.ContentShortVideo,
	feed.ContentAudio, feed.ContentLink, feed.ContentLive,
}

// SeedDemoData fills the supplier with perFeed generated items for each
// feed type and stores a set of demo user profiles. Generation is
// deterministic, so two boots with the same inputs serve the same
// content.
func SeedDemoData(supplier *Memory, profiles *MemoryProfiles, feedTypes []string, perFeed int) {
	if perFeed <= 0 {
		perFeed = defaultDemoItems
	}

	//nolint:gosec // G404: math/rand is acceptable for demo data generation (not security)
	rng := rand.New(rand.NewSource(demoSeed))
	now := time.Now().UTC()

	total := 0
	for _, feedType := range feedTypes {
		items := make([]feed.CandidateItem, 0, perFeed)
		for i := 0; i < perFeed; i++ {
			items = append(items, demoItem(rng, feedType, i, now))
		}
		supplier.Replace(feedType, items)
		total += len(items)
	}

	if profiles != nil {
		seedProfiles(rng, profiles)
	}

	logger := logging.WithComponent("supply")
	logger.Info().
		Int("items", total).
		Int("feed_types", len(feedTypes)).
		Msg("seeded demo content")
}

func demoItem(rng *rand.Rand, feedType string, index int, now time.Time) feed.CandidateItem {
	contentType := demoContentTypes[rng.Intn(len(demoContentTypes))]
	ageMinutes := rng.Intn(7*24*60) + 5

	item := feed.CandidateItem{
		ID:          fmt.Sprintf("%s-item-%04d", feedType, index+1),
		AuthorID:    fmt.Sprintf("creator-%02d", rng.Intn(24)+1),
		ContentType: contentType,
		Topics:      pickTopics(rng),
		CreatedAt:   now.Add(-time.Duration(ageMinutes) * time.Minute),
		BaseScore:   rng.Float64(),
		Sensitive:   rng.Float64() < 0.05,
		Metadata:    map[string]string{"origin": "demo"},
	}

	if contentType.RichMedia() {
		item.Accessibility.Captions = rng.Float64() < 0.7
	}
	if contentType == feed.ContentImage {
		item.Accessibility.AltText = rng.Float64() < 0.8
	}
	item.Accessibility.HighContrast = rng.Float64() < 0.2
	item.Accessibility.SimplifiedLanguage = rng.Float64() < 0.15

	return item
}

// pickTopics returns 1 to 3 distinct topics.
func pickTopics(rng *rand.Rand) []string {
	count := rng.Intn(3) + 1
	seen := make(map[int]bool, count)
	topics := make([]string, 0, count)
	for len(topics) < count {
		idx := rng.Intn(len(demoTopics))
		if seen[idx] {
			continue
		}
		seen[idx] = true
		topics = append(topics, demoTopics[idx])
	}
	return topics
}

func seedProfiles(rng *rand.Rand, profiles *MemoryProfiles) {
	for u := 1; u <= 10; u++ {
		count := rng.Intn(3) + 3
		interests := make(map[string]float64)
		for len(interests) < count {
			topic := demoTopics[rng.Intn(len(demoTopics))]
			interests[topic] = 0.3 + 0.7*rng.Float64()
		}

		prefs := map[feed.ContentType]float64{
			demoContentTypes[rng.Intn(len(demoContentTypes))]: 0.5 + 0.5*rng.Float64(),
			demoContentTypes[rng.Intn(len(demoContentTypes))]: 0.5 + 0.5*rng.Float64(),
		}

		profiles.Put(fmt.Sprintf("demo-user-%02d", u), &feed.Profile{
			TopicInterests:   interests,
			ContentTypePrefs: prefs,
		})
	}
}
