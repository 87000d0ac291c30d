package utils

import (
	"strings"
	"unicode"
)

// TitleSimilarity is the Jaccard overlap of the lower-cased word sets of a and b.
// Words shorter than three letters are ignored.
func TitleSimilarity(a, b string) float64 {
	left := wordSet(a)
	right := wordSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	shared := 0
	for w := range left {
		if _, ok := right[w]; ok {
			shared++
		}
	}
	union := len(left) + len(right) - shared
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
