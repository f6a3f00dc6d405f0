package normalize

import (
	"testing"
)

func TestNameNormalization(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "abbreviation expansion",
			input: "AIIMS",
			want:  "ALL INDIA INSTITUTE OF MEDICAL SCIENCES",
		},
		{
			name:  "mixed case with punctuation",
			input: "Govt. Medical College, Kottayam",
			want:  "GOVERNMENT MEDICAL COLLEGE KOTTAYAM",
		},
		{
			name:  "typo correction before expansion",
			input: "GOVT MEDICALL COLLAGE",
			want:  "GOVERNMENT MEDICAL COLLEGE",
		},
		{
			name:  "multiple abbreviations",
			input: "ESIC Med Coll & Hosp",
			want:  "EMPLOYEES STATE INSURANCE CORPORATION MEDICAL COLLEGE HOSPITAL",
		},
		{
			name:  "whitespace collapse",
			input: "  DISTRICT   HOSPITAL  ",
			want:  "DISTRICT HOSPITAL",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "word boundary protects embedded abbreviations",
			input: "MEDWAY INSTITUTE",
			want:  "MEDWAY INSTITUTE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Name(tt.input)
			if got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNameIdempotence(t *testing.T) {
	n := New(nil)

	inputs := []string{
		"AIIMS, New Delhi",
		"Govt. Medical College, Kottayam",
		"JIPMER",
		"ESI PGIMR, ESIC MEDICAL COLLEGE",
		"KEM HOSPITAL - SETH G.S. MEDICAL COLLEGE",
		"District Hospital, Mysore Road",
		"St. John's Medical College, Bengaluru",
		"  weird   spacing\tand\npunctuation!!!  ",
		"",
	}

	for _, input := range inputs {
		once := n.Name(input)
		twice := n.Name(once)
		if once != twice {
			t.Errorf("Name not idempotent for %q: first=%q second=%q", input, once, twice)
		}
	}
}

func TestStateNormalization(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name         string
		input        string
		want         string
		wantResolved bool
	}{
		{"canonical passthrough", "KARNATAKA", "KARNATAKA", true},
		{"synonym", "NEW DELHI", "DELHI", true},
		{"typo", "PONDICHERRY", "PUDUCHERRY", true},
		{"renamed state", "Orissa", "ODISHA", true},
		{"pincode suffix", "GUJARAT- 363641", "GUJARAT", true},
		{"embedded in address", "BAGALKOT 587103 KARNATAKA", "KARNATAKA", true},
		{"split typo", "DEL HI", "DELHI", true},
		{"lowercase", "tamil nadu", "TAMIL NADU", true},
		{"unknown", "NOWHERELAND", "NOWHERELAND", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, resolved := n.State(tt.input)
			if got != tt.want || resolved != tt.wantResolved {
				t.Errorf("State(%q) = (%q, %v), want (%q, %v)",
					tt.input, got, resolved, tt.want, tt.wantResolved)
			}
		})
	}
}

func TestStateIdempotence(t *testing.T) {
	n := New(nil)

	for _, raw := range []string{"NEW DELHI", "Orissa", "KARNATAKA", "GUJARAT- 363641"} {
		once, ok := n.State(raw)
		if !ok {
			t.Fatalf("State(%q) did not resolve", raw)
		}
		twice, ok := n.State(once)
		if !ok || once != twice {
			t.Errorf("State not idempotent for %q: first=%q second=%q", raw, once, twice)
		}
	}
}

func TestAddressNormalization(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name  string
		addr  string
		state string
		want  string
	}{
		{
			name:  "pincode removed",
			addr:  "Mysore Road, Bengaluru 560018",
			state: "",
			want:  "MYSORE ROAD BENGALURU",
		},
		{
			name:  "state stripped from address",
			addr:  "MANIPUR, POROMPAT, IMPHAL-EAST",
			state: "MANIPUR",
			want:  "POROMPAT IMPHAL EAST",
		},
		{
			name:  "empty",
			addr:  "",
			state: "KERALA",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Address(tt.addr, tt.state)
			if got != tt.want {
				t.Errorf("Address(%q, %q) = %q, want %q", tt.addr, tt.state, got, tt.want)
			}
		})
	}
}

func TestSplitBracketed(t *testing.T) {
	primary, secondary := SplitBracketed("JNM MEDICAL COLLEGE (WCD)")
	if primary != "JNM MEDICAL COLLEGE" || secondary != "WCD" {
		t.Errorf("SplitBracketed() = (%q, %q)", primary, secondary)
	}

	primary, secondary = SplitBracketed("PLAIN NAME")
	if primary != "PLAIN NAME" || secondary != "" {
		t.Errorf("SplitBracketed() = (%q, %q)", primary, secondary)
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want float64
	}{
		{"identical", []string{"DISTRICT", "HOSPITAL"}, []string{"DISTRICT", "HOSPITAL"}, 1.0},
		{"half", []string{"DISTRICT", "HOSPITAL"}, []string{"DISTRICT", "CLINIC"}, 0.5},
		{"disjoint", []string{"A"}, []string{"B"}, 0.0},
		{"both empty", nil, nil, 1.0},
		{"one empty", []string{"A"}, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenOverlap(tt.a, tt.b); got != tt.want {
				t.Errorf("TokenOverlap() = %v, want %v", got, tt.want)
			}
		})
	}
}
