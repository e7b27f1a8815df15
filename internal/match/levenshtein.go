// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

// Levenshtein returns the edit distance between a and b, counting single
// byte insertions, deletions and substitutions. Two rows of the DP matrix
// are kept, sized by the shorter string.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}

// LevenshteinNormalized maps the edit distance into a similarity in [0,1]:
// 1 - distance/max(len(a), len(b)).
func LevenshteinNormalized(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(max(len(a), len(b)))
}
