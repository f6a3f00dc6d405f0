// Package normalize canonicalizes free-text institution names, addresses and
// state names extracted from counselling records so they can be compared
// against the canonical registry.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer applies the fixed canonicalization pipeline. It is immutable
// after construction and safe for concurrent use.
type Normalizer struct {
	dict     *Dictionaries
	typoKeys []string
	abbrevs  []abbrevRule

	canonicalSet map[string]bool
}

var (
	rePincode    = regexp.MustCompile(`\b\d{6}\b`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reBracketed  = regexp.MustCompile(`\((.*?)\)`)
)

// accent folding: decompose, drop combining marks, recompose
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// New builds a Normalizer over the given correction tables. A nil dict uses
// the embedded defaults.
func New(dict *Dictionaries) *Normalizer {
	if dict == nil {
		dict = DefaultDictionaries()
	}

	canonical := make(map[string]bool, len(dict.CanonicalStates))
	for _, s := range dict.CanonicalStates {
		canonical[s] = true
	}

	return &Normalizer{
		dict:         dict,
		typoKeys:     dict.sortedTypoKeys(),
		abbrevs:      dict.compileAbbreviations(),
		canonicalSet: canonical,
	}
}

// Version reports the loaded dictionary version.
func (n *Normalizer) Version() string {
	return n.dict.Version
}

// Name canonicalizes an institution name. The pipeline is fixed: fold
// accents, strip punctuation, collapse whitespace, uppercase, apply typo
// corrections (longest match first), then expand abbreviations on word
// boundaries. Normalizing an already-normalized name returns it unchanged.
func (n *Normalizer) Name(raw string) string {
	s := n.clean(raw)
	if s == "" {
		return ""
	}

	for _, key := range n.typoKeys {
		s = strings.ReplaceAll(s, key, n.dict.Typos[key])
	}

	for _, rule := range n.abbrevs {
		s = rule.re.ReplaceAllString(s, rule.replacement)
	}

	return collapse(s)
}

// Address canonicalizes an institution address: the name pipeline plus
// pincode removal and, when the state is known, removal of the redundant
// state name so composite keys stay stable across sources.
func (n *Normalizer) Address(raw, state string) string {
	s := n.Name(raw)
	if s == "" {
		return ""
	}

	s = rePincode.ReplaceAllString(s, " ")

	if state != "" {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToUpper(state)) + `\b`)
		s = re.ReplaceAllString(s, " ")
	}

	return collapse(s)
}

// State resolves a raw state string to its canonical registry name. The
// second return reports whether the state resolved; on failure the cleaned
// input is returned so callers can log and degrade rather than drop the
// record.
func (n *Normalizer) State(raw string) (string, bool) {
	s := n.clean(raw)
	if s == "" {
		return "", false
	}

	s = rePincode.ReplaceAllString(s, " ")
	s = collapse(s)

	for _, key := range n.typoKeys {
		s = strings.ReplaceAll(s, key, n.dict.Typos[key])
	}

	if n.canonicalSet[s] {
		return s, true
	}

	if canonical, ok := n.dict.StateSynonyms[s]; ok {
		return canonical, true
	}

	// Raw state fields often carry whole addresses ("BAGALKOT 587103
	// KARNATAKA"); accept any embedded canonical name, longest first so
	// DAMAN AND DIU wins over DIU-style partials.
	best := ""
	for _, canonical := range n.dict.CanonicalStates {
		if strings.Contains(s, canonical) && len(canonical) > len(best) {
			best = canonical
		}
	}
	if best != "" {
		return best, true
	}

	return s, false
}

// CompositeKey joins a normalized name and address into the registry's
// uniqueness key.
func CompositeKey(normalizedName, normalizedAddress string) string {
	return normalizedName + "," + normalizedAddress
}

// SplitBracketed splits "JNM MEDICAL COLLEGE (WCD)" into its primary and
// secondary names. Secondary is empty when there is no bracketed part.
func SplitBracketed(raw string) (primary, secondary string) {
	m := reBracketed.FindStringSubmatch(raw)
	if m == nil {
		return strings.TrimSpace(raw), ""
	}
	idx := strings.Index(raw, "(")
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(m[1])
}

// Tokens splits a normalized string into its word tokens.
func Tokens(s string) []string {
	return strings.Fields(s)
}

// TokenOverlap returns the shared-token ratio of two token sets, relative to
// the smaller set.
func TokenOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}

	overlap := 0
	for _, tok := range b {
		if set[tok] {
			overlap++
		}
	}

	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	return float64(overlap) / float64(minLen)
}

// SharedTokens counts tokens of b present in a.
func SharedTokens(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}
	shared := 0
	for _, tok := range b {
		if set[tok] {
			shared++
		}
	}
	return shared
}

// clean runs the structural part of the pipeline shared by names, addresses
// and states: accent folding, punctuation removal, whitespace collapse,
// uppercase.
func (n *Normalizer) clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.ToUpper(collapse(b.String()))
}

func collapse(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
