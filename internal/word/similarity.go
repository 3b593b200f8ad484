package word

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultDistanceThreshold is the largest edit distance, relative to the
// longer word, still considered similar.
const DefaultDistanceThreshold = 0.3

// Exists reports exact membership.
func Exists(words []string, w string) bool {
	return slices.Contains(words, w)
}

// NearPieces returns every stored word that contains w or is contained in it.
func NearPieces(words []string, w string) []string {
	var matches []string
	for _, stored := range words {
		if strings.Contains(w, stored) || strings.Contains(stored, w) {
			matches = append(matches, stored)
		}
	}
	slices.Sort(matches)
	return matches
}

// NearByDistance returns every stored word whose Levenshtein distance to w,
// divided by the longer length, is at most threshold.
func NearByDistance(words []string, w string, threshold float64) []string {
	var matches []string
	for _, stored := range words {
		if DistanceRatio(stored, w) <= threshold {
			matches = append(matches, stored)
		}
	}
	slices.Sort(matches)
	return matches
}

func DistanceRatio(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return float64(fuzzy.LevenshteinDistance(a, b)) / float64(longest)
}
