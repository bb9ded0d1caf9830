package correlate

import (
	"math"
	"strings"
)

// Similarity returns the normalized indel similarity of the lowercased names,
// 2*LCS/(len(a)+len(b)) over runes, rounded to two decimals. Two empty names score 1.
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return round2(float64(2*lcsLength(ra, rb)) / float64(total))
}

// lcsLength is the longest common subsequence length, O(len(a)*len(b)) time, O(len(b)) space
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
