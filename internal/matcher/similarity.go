package matcher

import (
	"github.com/neetlogiq/collegematch/internal/registry"
)

// Similarity scores two normalized strings as 1 - editDistance/maxLen.
// Identical strings score 1.0; fully disjoint strings approach 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// nameSimilarity scores a normalized query against an institution, taking
// the best of its current name, previous name and name+address composite.
// The composite form catches raw names that embed a location fragment.
func nameSimilarity(idx *registry.Index, query string, inst *registry.Institution) float64 {
	best := Similarity(query, inst.NormalizedName)

	if inst.PreviousName != "" {
		prev := idx.Normalizer().Name(inst.PreviousName)
		if s := Similarity(query, prev); s > best {
			best = s
		}
	}

	if inst.NormalizedAddress != "" {
		composite := inst.NormalizedName + " " + inst.NormalizedAddress
		if s := Similarity(query, composite); s > best {
			best = s
		}
	}

	return best
}

// levenshtein computes edit distance with two working rows.
func levenshtein(a, b string) int {
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
