package spell

import (
	"testing"
)

func buildTestCorrector() *Corrector {
	c := NewCorrector(2)
	for term, freq := range map[string]int64{
		"GOVERNMENT": 5000,
		"MEDICAL":    8000,
		"COLLEGE":    9000,
		"HOSPITAL":   7000,
		"INSTITUTE":  4000,
		"DISTRICT":   3000,
		"SCIENCES":   2000,
		"BENGALURU":  1000,
		"MYSORE":     800,
		"KOTTAYAM":   500,
	} {
		c.AddTerm(term, freq)
	}
	return c
}

func TestSuggest(t *testing.T) {
	c := buildTestCorrector()

	tests := []struct {
		name         string
		input        string
		wantTerm     string
		wantDistance int
	}{
		{"exact term", "MEDICAL", "MEDICAL", 0},
		{"transposition", "MEDICLA", "MEDICAL", 1},
		{"missing letter", "HOSPITL", "HOSPITAL", 1},
		{"extra letter", "COLLLEGE", "COLLEGE", 1},
		{"dropped letter inside", "INSTITUE", "INSTITUTE", 1},
		{"place name", "BANGALURU", "BENGALURU", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Suggest(tt.input)
			if len(got) == 0 {
				t.Fatalf("Suggest(%q) returned nothing", tt.input)
			}
			if got[0].Term != tt.wantTerm || got[0].Distance != tt.wantDistance {
				t.Errorf("Suggest(%q)[0] = {%s %d}, want {%s %d}",
					tt.input, got[0].Term, got[0].Distance, tt.wantTerm, tt.wantDistance)
			}
		})
	}
}

func TestSuggestLeavesShortTokensAlone(t *testing.T) {
	c := buildTestCorrector()
	if got := c.Suggest("KEM"); got != nil {
		t.Errorf("Suggest(short token) = %v, want nil", got)
	}
}

func TestSuggestNoFarCorrections(t *testing.T) {
	c := buildTestCorrector()
	for _, s := range c.Suggest("ZZZZZZZZ") {
		if s.Distance > 2 {
			t.Errorf("suggestion %v beyond max distance", s)
		}
	}
}

func TestCorrectPhrase(t *testing.T) {
	c := buildTestCorrector()

	got, corrected := c.CorrectPhrase("GOVERMENT MEDICLA COLLEGE MYSORE")
	want := "GOVERNMENT MEDICAL COLLEGE MYSORE"
	if got != want || corrected != 2 {
		t.Errorf("CorrectPhrase() = (%q, %d), want (%q, 2)", got, corrected, want)
	}

	// Already-clean phrases pass through untouched.
	got, corrected = c.CorrectPhrase("DISTRICT HOSPITAL KOTTAYAM")
	if got != "DISTRICT HOSPITAL KOTTAYAM" || corrected != 0 {
		t.Errorf("CorrectPhrase(clean) = (%q, %d)", got, corrected)
	}
}
