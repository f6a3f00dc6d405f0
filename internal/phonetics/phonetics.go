// Package phonetics provides a lightweight phonetic encoding used as a
// secondary similarity signal by the ensemble matching stage. Institution
// names transliterated from Indian languages vary in spelling far more than
// in sound (BENGALURU/BANGALORE, THIRUVANANTHAPURAM/TRIVANDRUM), so a coarse
// consonant skeleton catches variants plain edit distance misses.
package phonetics

import (
	"strings"
)

// digraphs collapsed before vowel removal. Ordered pairs; checked before
// single characters.
var digraphs = map[string]string{
	"PH": "F",
	"BH": "B",
	"DH": "D",
	"GH": "G",
	"JH": "J",
	"KH": "K",
	"TH": "T",
	"CH": "C",
	"SH": "S",
	"CK": "K",
	"QU": "KW",
	"KN": "N",
	"WR": "R",
	"PS": "S",
}

// singles folds letters that alternate freely in transliteration.
var singles = map[byte]byte{
	'W': 'V',
	'Z': 'J',
	'Q': 'K',
	'X': 'S',
}

// Encode returns the phonetic code for a single word: consonant skeleton
// with digraphs collapsed, transliteration-equivalent letters folded, vowels
// dropped after the first character, and runs deduplicated.
func Encode(word string) string {
	s := strings.ToUpper(strings.TrimSpace(word))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if i+1 < len(s) {
			if rep, ok := digraphs[s[i:i+2]]; ok {
				b.WriteString(rep)
				i += 2
				continue
			}
		}
		ch := s[i]
		if rep, ok := singles[ch]; ok {
			ch = rep
		}
		b.WriteByte(ch)
		i++
	}

	s = b.String()

	// Keep the leading character even if it is a vowel; drop the rest.
	var out strings.Builder
	var last byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if i > 0 && isVowel(ch) {
			continue
		}
		if ch == last {
			continue
		}
		out.WriteByte(ch)
		last = ch
	}

	code := out.String()
	if len(code) > 6 {
		code = code[:6]
	}
	return code
}

// EncodePhrase encodes each word of a phrase and joins the codes.
func EncodePhrase(phrase string) string {
	words := strings.Fields(phrase)
	codes := make([]string, 0, len(words))
	for _, w := range words {
		if code := Encode(w); code != "" {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, " ")
}

// Match reports whether two phrases share a phonetic skeleton.
func Match(a, b string) bool {
	ca, cb := EncodePhrase(a), EncodePhrase(b)
	return ca != "" && ca == cb
}

func isVowel(ch byte) bool {
	switch ch {
	case 'A', 'E', 'I', 'O', 'U', 'Y':
		return true
	}
	return false
}
