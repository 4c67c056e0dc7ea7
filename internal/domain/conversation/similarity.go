package conversation

import "strings"

// ratio computes a Ratcliff/Obershelp similarity score in [0, 1] between a
// and b, matching the notion difflib.SequenceMatcher.ratio() implements:
// twice the total length of recursively-found longest common substrings,
// divided by the combined length of both strings. Comparison is
// case-insensitive since retried requests are rarely byte-identical.
func ratio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	matched := matchingLength(a, b)
	return 2.0 * float64(matched) / float64(len(a)+len(b))
}

func matchingLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingLength(a[:i], b[:j]) + matchingLength(a[i+size:], b[j+size:])
}

// longestCommonSubstring runs the naive O(len(a)*len(b)) scan — request
// texts here are short (user messages, not documents), so the quadratic
// cost is negligible.
func longestCommonSubstring(a, b string) (besti, bestj, bestsize int) {
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > bestsize {
				besti, bestj, bestsize = i, j, k
			}
		}
	}
	return besti, bestj, bestsize
}
