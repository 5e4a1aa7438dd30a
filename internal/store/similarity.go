// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// trigramSimilarity scores the overlap between two strings in [0,1]. It
// runs after search.go's FTS5 MATCH queries have already narrowed the
// candidate set: the boolean-query min/max composition of §4.2 needs an
// exact per-field score on that narrowed set, which go-edlib's character
// n-gram (Sorensen-Dice/Jaccard style) similarity gives directly.
func trigramSimilarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.Jaccard)
	if err != nil {
		return 0
	}
	return float64(score)
}

// containmentBoost returns 1.0 when needle is a literal substring of
// haystack (case-insensitive), which the plain trigram score sometimes
// under-weights for short queries against long names.
func containmentBoost(haystack, needle string) float64 {
	if needle == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(haystack), strings.ToLower(needle)) {
		return 1
	}
	return 0
}

// fieldScore is the best of containment and trigram similarity, matching
// the "contains or fuzzy" semantics the trigram tokenizer gives for free
// over FTS5 MATCH queries.
func fieldScore(field, term string) float64 {
	return max(containmentBoost(field, term), trigramSimilarity(field, term))
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
