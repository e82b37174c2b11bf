package reconcile

import "strings"

// shingleSize is the character window used to shingle names before the
// Jaccard comparison. Three characters keeps single-word names apart
// while tolerating accents and reordering in longer ones.
const shingleSize = 3

// ShingleSimilarity reports the Jaccard similarity of the k-shingle
// sets of two names, in [0, 1]. Names are lowercased and
// whitespace-collapsed first, so formatting differences do not lower
// the score.
func ShingleSimilarity(a, b string) float64 {
	a = normalizeName(a)
	b = normalizeName(b)
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}

	sa := shingles(a)
	sb := shingles(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}

	intersection := 0
	for s := range sa {
		if _, ok := sb[s]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	return float64(intersection) / float64(union)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// shingles builds the set of overlapping runs of shingleSize runes.
// Strings shorter than the window form a single shingle of themselves.
func shingles(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	if len(runes) <= shingleSize {
		set[string(runes)] = struct{}{}
		return set
	}
	for i := 0; i+shingleSize <= len(runes); i++ {
		set[string(runes[i:i+shingleSize])] = struct{}{}
	}
	return set
}
