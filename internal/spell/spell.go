// Package spell implements symmetric-delete spelling correction over the
// registry's name and address vocabulary. Counselling spreadsheets carry
// token-level typos ("MEDICLA", "HOSPITL") that survive the literal
// correction tables; correcting tokens toward registry vocabulary before
// fuzzy scoring recovers those records without loosening the similarity
// threshold.
package spell

import (
	"sort"
	"strings"
)

// Suggestion is one correction candidate for a token.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int64
}

// Corrector holds the vocabulary and its pre-computed delete variants.
// Build fully, then share read-only across workers.
type Corrector struct {
	maxDistance   int
	minTermLength int

	vocabulary map[string]int64
	deletes    map[string][]string
}

// NewCorrector creates an empty corrector. maxDistance 2 catches most typos
// without inventing corrections; tokens shorter than 4 characters are left
// alone so abbreviations and initials survive.
func NewCorrector(maxDistance int) *Corrector {
	if maxDistance < 1 {
		maxDistance = 1
	}
	return &Corrector{
		maxDistance:   maxDistance,
		minTermLength: 4,
		vocabulary:    make(map[string]int64),
		deletes:       make(map[string][]string),
	}
}

// AddTerm registers a vocabulary term with an occurrence count.
func (c *Corrector) AddTerm(term string, frequency int64) {
	term = strings.ToUpper(strings.TrimSpace(term))
	if len(term) < c.minTermLength {
		return
	}

	if _, exists := c.vocabulary[term]; !exists {
		for _, del := range deleteVariants(term, c.maxDistance) {
			c.deletes[del] = append(c.deletes[del], term)
		}
	}
	c.vocabulary[term] += frequency
}

// AddPhrase registers every token of a normalized phrase.
func (c *Corrector) AddPhrase(phrase string) {
	for _, tok := range strings.Fields(phrase) {
		c.AddTerm(tok, 1)
	}
}

// Size reports the vocabulary term count.
func (c *Corrector) Size() int {
	return len(c.vocabulary)
}

// Suggest returns correction candidates for a token, nearest first, more
// frequent first among equals. A token already in the vocabulary suggests
// itself at distance 0.
func (c *Corrector) Suggest(token string) []Suggestion {
	token = strings.ToUpper(strings.TrimSpace(token))
	if len(token) < c.minTermLength {
		return nil
	}

	if freq, ok := c.vocabulary[token]; ok {
		return []Suggestion{{Term: token, Distance: 0, Frequency: freq}}
	}

	seen := make(map[string]bool)
	var out []Suggestion

	probes := deleteVariants(token, c.maxDistance)
	probes = append(probes, token)

	for _, probe := range probes {
		for _, term := range c.deletes[probe] {
			if seen[term] {
				continue
			}
			seen[term] = true
			if dist := boundedEditDistance(token, term, c.maxDistance); dist >= 0 {
				out = append(out, Suggestion{Term: term, Distance: dist, Frequency: c.vocabulary[term]})
			}
		}
		if freq, ok := c.vocabulary[probe]; ok && !seen[probe] {
			seen[probe] = true
			if dist := boundedEditDistance(token, probe, c.maxDistance); dist >= 0 {
				out = append(out, Suggestion{Term: probe, Distance: dist, Frequency: freq})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// CorrectPhrase corrects each token of a normalized phrase toward the
// vocabulary and reports how many tokens changed. Unknown tokens with no
// near neighbour pass through unchanged.
func (c *Corrector) CorrectPhrase(phrase string) (string, int) {
	tokens := strings.Fields(phrase)
	corrected := 0
	for i, tok := range tokens {
		suggestions := c.Suggest(tok)
		if len(suggestions) == 0 || suggestions[0].Distance == 0 {
			continue
		}
		tokens[i] = suggestions[0].Term
		corrected++
	}
	return strings.Join(tokens, " "), corrected
}

// deleteVariants generates every string reachable by up to maxDistance
// single-character deletions.
func deleteVariants(term string, maxDistance int) []string {
	if maxDistance <= 0 || len(term) <= 1 {
		return nil
	}

	variants := make(map[string]bool)
	var recurse func(s string, remaining int)
	recurse = func(s string, remaining int) {
		if remaining <= 0 || len(s) <= 1 {
			return
		}
		for i := 0; i < len(s); i++ {
			del := s[:i] + s[i+1:]
			if !variants[del] {
				variants[del] = true
				recurse(del, remaining-1)
			}
		}
	}
	recurse(term, maxDistance)

	out := make([]string, 0, len(variants))
	for v := range variants {
		out = append(out, v)
	}
	return out
}

// boundedEditDistance is Damerau-Levenshtein with early exit; returns -1
// when the distance exceeds maxDistance.
func boundedEditDistance(a, b string, maxDistance int) int {
	lenA, lenB := len(a), len(b)
	if abs(lenA-lenB) > maxDistance {
		return -1
	}
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	if lenA > lenB {
		a, b = b, a
		lenA, lenB = lenB, lenA
	}

	prevPrev := make([]int, lenA+1)
	prev := make([]int, lenA+1)
	curr := make([]int, lenA+1)
	for i := 0; i <= lenA; i++ {
		prev[i] = i
	}

	for j := 1; j <= lenB; j++ {
		curr[0] = j
		rowMin := j

		for i := 1; i <= lenA; i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[i] = min(prev[i]+1, min(curr[i-1]+1, prev[i-1]+cost))

			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if t := prevPrev[i-2] + cost; t < curr[i] {
					curr[i] = t
				}
			}

			if curr[i] < rowMin {
				rowMin = curr[i]
			}
		}

		if rowMin > maxDistance {
			return -1
		}
		prevPrev, prev, curr = prev, curr, prevPrev
	}

	if prev[lenA] > maxDistance {
		return -1
	}
	return prev[lenA]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
