package matcher

import (
	"context"
	"testing"

	"github.com/neetlogiq/collegematch/internal/ledger"
	"github.com/neetlogiq/collegematch/internal/normalize"
	"github.com/neetlogiq/collegematch/internal/registry"
)

func testIndex(t *testing.T) *registry.Index {
	t.Helper()

	snap := &registry.Snapshot{
		Version: "test",
		Institutions: []registry.Institution{
			{ID: "KA-001", Name: "BANGALORE MEDICAL COLLEGE AND RESEARCH INSTITUTE", State: "KARNATAKA", Address: "FORT ROAD BANGALORE 560002"},
			{ID: "KA-002", Name: "GOVERNMENT MEDICAL COLLEGE MYSORE", State: "KARNATAKA", Address: "IRWIN ROAD MYSORE 570001"},
			{ID: "KA-010", Name: "RAJIV GANDHI INSTITUTE OF CHEST DISEASES", PreviousName: "SDS TUBERCULOSIS SANATORIUM", State: "KARNATAKA", Address: "SOMESHWARA NAGAR BANGALORE"},
			{ID: "KA-101", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "MYSORE ROAD BANGALORE"},
			{ID: "KA-102", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "BH ROAD TUMKUR"},
			{ID: "KA-103", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "RACE COURSE ROAD HASSAN"},
			{ID: "UP-001", Name: "KING GEORGES MEDICAL UNIVERSITY", State: "UTTAR PRADESH", Address: "CHOWK LUCKNOW 226003"},
			{ID: "DL-001", Name: "ALL INDIA INSTITUTE OF MEDICAL SCIENCES", State: "NEW DELHI", Address: "ANSARI NAGAR NEW DELHI 110029"},
		},
	}

	idx, err := registry.Build(snap, normalize.New(nil))
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

func TestCascadeStages(t *testing.T) {
	c := New(testIndex(t), Options{})

	tests := []struct {
		desc   string
		name   string
		state  string
		wantID string
		stage  Stage
	}{
		{
			desc:   "exact hit on raw name",
			name:   "BANGALORE MEDICAL COLLEGE AND RESEARCH INSTITUTE",
			state:  "Karnataka",
			wantID: "KA-001",
			stage:  StageExact,
		},
		{
			desc:   "exact hit on previous name",
			name:   "SDS TUBERCULOSIS SANATORIUM",
			state:  "KARNATAKA",
			wantID: "KA-010",
			stage:  StageExact,
		},
		{
			desc:   "exact hit after state synonym resolution",
			name:   "KING GEORGES MEDICAL UNIVERSITY",
			state:  "UP",
			wantID: "UP-001",
			stage:  StageExact,
		},
		{
			desc:   "typo correction reaches normalized tier",
			name:   "BANGALORE MEDICALL COLLEGE AND RESEARCH INSTITUTE",
			state:  "KARNATAKA",
			wantID: "KA-001",
			stage:  StageNormalized,
		},
		{
			desc:   "abbreviation expansion reaches normalized tier",
			name:   "GOVT MEDICAL COLLEGE MYSORE",
			state:  "KARNATAKA",
			wantID: "KA-002",
			stage:  StageNormalized,
		},
		{
			desc:   "abbreviation and state synonym together",
			name:   "AIIMS",
			state:  "DELHI",
			wantID: "DL-001",
			stage:  StageNormalized,
		},
		{
			desc:   "unseen misspelling falls to fuzzy",
			name:   "BANGALORE MEDIKAL COLLEGE AND RESEARCH INSTITUTE",
			state:  "KARNATAKA",
			wantID: "KA-001",
			stage:  StageFuzzy,
		},
		{
			desc:   "location fragment separates same-name hospitals",
			name:   "DISTRICT HOSPITAL, MYSORE ROAD",
			state:  "KARNATAKA",
			wantID: "KA-101",
			stage:  StageLocationDisambiguated,
		},
	}

	for _, tt := range tests {
		got := c.Match(tt.name, tt.state)
		if got.CandidateID != tt.wantID {
			t.Errorf("%s: candidate = %q, want %q", tt.desc, got.CandidateID, tt.wantID)
		}
		if got.Stage != tt.stage {
			t.Errorf("%s: stage = %s, want %s", tt.desc, got.Stage, tt.stage)
		}
		if !got.StateResolved {
			t.Errorf("%s: state should resolve", tt.desc)
		}
	}
}

func TestCascadeUnmatched(t *testing.T) {
	c := New(testIndex(t), Options{})

	tests := []struct {
		desc   string
		name   string
		state  string
		reason string
	}{
		{"empty name", "", "KARNATAKA", ReasonMalformedInput},
		{"unknown state", "NONEXISTENT PLACE", "ATLANTIS", ReasonUnresolvedState},
		{"nothing similar", "XYZVILLE CENTRE", "KARNATAKA", ReasonBelowThreshold},
	}

	for _, tt := range tests {
		got := c.Match(tt.name, tt.state)
		if got.Matched() {
			t.Errorf("%s: unexpected match %q at %s", tt.desc, got.CandidateID, got.Stage)
		}
		if got.Stage != StageNone {
			t.Errorf("%s: stage = %s, want %s", tt.desc, got.Stage, StageNone)
		}
		if got.Reason != tt.reason {
			t.Errorf("%s: reason = %q, want %q", tt.desc, got.Reason, tt.reason)
		}
	}
}

func TestCascadeTieWithoutFragmentIsDeterministic(t *testing.T) {
	c := New(testIndex(t), Options{})

	// No location fragment separates the three same-name hospitals, so the
	// cascade must still pick one candidate and always the same one.
	first := c.Match("DISTRICT HOSPITAL", "KARNATAKA")
	if first.Stage != StageFuzzy {
		t.Fatalf("stage = %s, want %s", first.Stage, StageFuzzy)
	}
	if first.CandidateID != "KA-102" {
		t.Fatalf("candidate = %q, want deterministic front-runner KA-102", first.CandidateID)
	}
	for i := 0; i < 10; i++ {
		if got := c.Match("DISTRICT HOSPITAL", "KARNATAKA"); got.CandidateID != first.CandidateID {
			t.Fatalf("run %d: candidate = %q, want %q", i, got.CandidateID, first.CandidateID)
		}
	}
}

func TestCascadeManualOverridePreemptsStages(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	if err := l.AppendOverride(ledger.OverrideMapping{
		NormalizedName:  "ABC SUPER SPECIALITY CENTRE",
		NormalizedState: "KARNATAKA",
		CanonicalID:     "KA-001",
	}); err != nil {
		t.Fatalf("append override: %v", err)
	}

	c := New(testIndex(t), Options{Ledger: l})

	got := c.Match("ABC SUPER SPECIALITY CENTRE", "KARNATAKA")
	if got.Stage != StageManual {
		t.Fatalf("stage = %s, want %s", got.Stage, StageManual)
	}
	if got.CandidateID != "KA-001" {
		t.Fatalf("candidate = %q, want KA-001", got.CandidateID)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", got.Confidence)
	}
}

func TestEnsembleStageCorrectsSpelling(t *testing.T) {
	c := New(testIndex(t), Options{Stages: []Stage{StageEnsemble}})

	got := c.Match("GOVURNMENT MEDICL COLLEGE MYSORE", "KARNATAKA")
	if got.Stage != StageEnsemble {
		t.Fatalf("stage = %s, want %s", got.Stage, StageEnsemble)
	}
	if got.CandidateID != "KA-002" {
		t.Fatalf("candidate = %q, want KA-002", got.CandidateID)
	}
}

func TestEnsembleTieKeepsEnsembleStage(t *testing.T) {
	c := New(testIndex(t), Options{Stages: []Stage{StageEnsemble}})

	// The three same-name hospitals tie; the fragment picks one, but the hit
	// is still an ensemble hit.
	got := c.Match("DISTRICT HOSPITAL, MYSORE ROAD", "KARNATAKA")
	if got.Stage != StageEnsemble {
		t.Fatalf("stage = %s, want %s", got.Stage, StageEnsemble)
	}
	if got.CandidateID != "KA-101" {
		t.Fatalf("candidate = %q, want KA-101", got.CandidateID)
	}
}

func TestMatchBatch(t *testing.T) {
	dir := t.TempDir()
	l, err := ledger.Open(dir)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	c := New(testIndex(t), Options{Ledger: l})

	records := []Record{
		{Name: "BANGALORE MEDICAL COLLEGE AND RESEARCH INSTITUTE", State: "KARNATAKA"},
		{Name: "GOVT MEDICAL COLLEGE MYSORE", State: "KARNATAKA"},
		{Name: "XYZVILLE CENTRE", State: "KARNATAKA"},
		{Name: "XYZVILLE CENTRE", State: "KARNATAKA"},
	}

	results, stats, err := c.MatchBatch(context.Background(), records, 4)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	for i, r := range results {
		if r.Record.Name != records[i].Name {
			t.Fatalf("result %d out of order: %q", i, r.Record.Name)
		}
	}
	if stats.Total != 4 || stats.Matched != 2 {
		t.Fatalf("stats = %d/%d matched, want 2/4", stats.Matched, stats.Total)
	}
	if stats.ByStage[StageExact] != 1 || stats.ByStage[StageNormalized] != 1 || stats.ByStage[StageNone] != 2 {
		t.Fatalf("stage counts = %v", stats.ByStage)
	}
	if stats.MatchRate() != 0.5 {
		t.Fatalf("match rate = %v, want 0.5", stats.MatchRate())
	}

	backlog, err := l.Backlog()
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if len(backlog) != 1 {
		t.Fatalf("backlog entries = %d, want 1", len(backlog))
	}
	if backlog[0].NormalizedName != "XYZVILLE CENTRE" || backlog[0].Records != 2 {
		t.Fatalf("backlog entry = %+v", backlog[0])
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"DISTRICT HOSPITAL", "DISTRICT HOSPITAL", 1.0},
		{"", "", 1.0},
		{"A", "", 0.0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	// One substitution over a 48-char name stays close to 1.
	s := Similarity(
		"BANGALORE MEDIKAL COLLEGE AND RESEARCH INSTITUTE",
		"BANGALORE MEDICAL COLLEGE AND RESEARCH INSTITUTE",
	)
	if s <= 0.95 {
		t.Errorf("single-edit similarity = %v, want > 0.95", s)
	}
}
