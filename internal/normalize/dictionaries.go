package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

//go:embed defaults.toml
var defaultDictionaries []byte

// Dictionaries holds the versioned correction tables the normalizer applies.
// They are loaded from a TOML file so corrections can be extended without a
// rebuild; the embedded defaults cover the standard counselling datasets.
type Dictionaries struct {
	Version         string            `toml:"version"`
	CanonicalStates []string          `toml:"canonical_states"`
	Typos           map[string]string `toml:"typos"`
	Abbreviations   map[string]string `toml:"abbreviations"`
	StateSynonyms   map[string]string `toml:"state_synonyms"`
}

// abbrevRule is a compiled word-boundary replacement.
type abbrevRule struct {
	re          *regexp.Regexp
	replacement string
}

// LoadDictionaries reads correction tables from path. An empty path loads the
// embedded defaults.
func LoadDictionaries(path string) (*Dictionaries, error) {
	data := defaultDictionaries
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read dictionaries %s: %w", path, err)
		}
		data = b
	}

	var dict Dictionaries
	if err := toml.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("parse dictionaries: %w", err)
	}

	if len(dict.CanonicalStates) == 0 {
		return nil, fmt.Errorf("dictionaries %s: no canonical states defined", path)
	}

	return &dict, nil
}

// DefaultDictionaries returns the embedded correction tables.
func DefaultDictionaries() *Dictionaries {
	dict, err := LoadDictionaries("")
	if err != nil {
		// The embedded file is part of the build; a parse failure here is a
		// packaging bug, not a runtime condition.
		panic(err)
	}
	return dict
}

// sortedTypoKeys returns typo patterns longest first so that overlapping
// corrections apply the most specific replacement.
func (d *Dictionaries) sortedTypoKeys() []string {
	keys := make([]string, 0, len(d.Typos))
	for k := range d.Typos {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// compileAbbreviations builds word-boundary rules, longest abbreviation first.
func (d *Dictionaries) compileAbbreviations() []abbrevRule {
	keys := make([]string, 0, len(d.Abbreviations))
	for k := range d.Abbreviations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	rules := make([]abbrevRule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, abbrevRule{
			re:          regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`),
			replacement: d.Abbreviations[k],
		})
	}
	return rules
}
