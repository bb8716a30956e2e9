package cache

import (
	"strings"

	"github.com/samber/lo"
)

// QuerySimilarity scores how close two queries are in [0, 1] using the
// default weights. This is a cheap text-level measure for cache matching,
// distinct from the vector cosine similarity used by the index: it combines
// Jaccard similarity over lowercase whitespace tokens with a
// character-overlap ratio. Symmetric; 0 when either input is empty; 1 for
// identical strings.
func QuerySimilarity(a, b string) float64 {
	return weightedQuerySimilarity(a, b, DefaultConfig.WordWeight, DefaultConfig.CharWeight)
}

func weightedQuerySimilarity(a, b string, wordWeight, charWeight float64) float64 {
	wordsA := lo.Uniq(strings.Fields(strings.ToLower(a)))
	wordsB := lo.Uniq(strings.Fields(strings.ToLower(b)))
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	// The weights need not sum to exactly 1 in floating point; identical
	// queries still score a full 1.0.
	if strings.EqualFold(a, b) {
		return 1
	}

	intersection := len(lo.Intersect(wordsA, wordsB))
	union := len(lo.Union(wordsA, wordsB))
	wordSimilarity := float64(intersection) / float64(union)

	return wordSimilarity*wordWeight + charOverlap(strings.ToLower(a), strings.ToLower(b))*charWeight
}

// charOverlap is the ratio of shared character occurrences to the longer
// string's length. For each distinct rune the shared count is the smaller
// of its counts in the two strings.
func charOverlap(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	countsA := runeCounts(a)
	countsB := runeCounts(b)

	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}

	common := 0
	for r, ca := range countsA {
		if cb, ok := countsB[r]; ok {
			common += min(ca, cb)
		}
	}
	return float64(common) / float64(maxLen)
}

func runeCounts(s string) map[rune]int {
	counts := make(map[rune]int)
	for _, r := range s {
		counts[r]++
	}
	return counts
}
