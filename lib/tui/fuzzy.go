// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"sort"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult holds the outcome of a fuzzy match: a relevance score
// and the matched rune positions in the text. A zero Score means no
// match; higher scores mean better matches (contiguous runs and
// word-boundary hits score above scattered characters).
type FuzzyResult struct {
	Score     int
	Positions []int
}

// FuzzyMatch runs fzf's V2 matching algorithm against a single text.
// Matching is case-insensitive: the pattern is lowercased rune-wise
// and the algorithm folds the text while scanning, so the returned
// positions index the original text's runes. Latin variants are
// normalized (é matches e).
//
// The slab is fzf's scratch allocator. Pass nil for one-off calls;
// reuse one slab (util.MakeSlab) when matching a pattern against many
// candidates in a loop.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 || text == "" {
		return FuzzyResult{}
	}

	lowered := make([]rune, len(pattern))
	for i, r := range pattern {
		lowered[i] = unicode.ToLower(r)
	}

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}

	matched := FuzzyResult{Score: result.Score}
	if positions != nil {
		// The backtrace yields positions in reverse; callers want
		// ascending order for highlighting.
		matched.Positions = append(matched.Positions, *positions...)
		sort.Ints(matched.Positions)
	}
	return matched
}
