// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package experiment

import "hash/fnv"

// Bucketing contract, fixed for the life of the deployment:
//
//	inclusion bucket = fnv1a64(userID + ":" + experimentID) % 10000 / 100
//	variant bucket   = fnv1a64(userID + ":" + experimentID + ":variant") % 10000 / 100
//
// Both buckets are in [0, 100) with 0.01 granularity. A user is included
// when the inclusion bucket is strictly below the target percentage. The
// ":variant" salt keeps the two buckets independent so retuning the target
// percentage never reshuffles variant membership. FNV-1a (64-bit) is part
// of the contract; it must not track whatever hashing the rest of the
// codebase uses.
const variantSalt = ":variant"

const bucketGranularity = 10000

// InclusionBucket returns the user's inclusion bucket for an experiment.
func InclusionBucket(userID, experimentID string) float64 {
	return bucketOf(userID + ":" + experimentID)
}

// VariantBucket returns the user's variant-selection bucket for an
// experiment.
func VariantBucket(userID, experimentID string) float64 {
	return bucketOf(userID + ":" + experimentID + variantSalt)
}

func bucketOf(key string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return float64(h.Sum64()%bucketGranularity) / (bucketGranularity / 100)
}

// pickVariant walks variants in declared order, comparing the variant
// bucket against cumulative allocations. The final variant absorbs any
// rounding remainder so a bucket never falls through.
func pickVariant(variants []Variant, bucket float64) *Variant {
	if len(variants) == 0 {
		return nil
	}
	cumulative := 0.0
	for i := range variants {
		cumulative += variants[i].Allocation
		if bucket < cumulative {
			return &variants[i]
		}
	}
	return &variants[len(variants)-1]
}
