// Package matcher implements the cascading entity-resolution engine that
// links free-text institution names to canonical registry records.
package matcher

import (
	"time"
)

// Stage identifies the strategy that produced a match. The cascade is
// configured as an ordered list of stages so alternative orderings can be
// benchmarked without duplicating logic.
type Stage string

const (
	StageManual                Stage = "MANUAL"
	StageExact                 Stage = "EXACT"
	StageNormalized            Stage = "NORMALIZED"
	StageFuzzy                 Stage = "FUZZY"
	StageLocationDisambiguated Stage = "LOCATION_DISAMBIGUATED"
	StageEnsemble              Stage = "ENSEMBLE"
	StageNone                  Stage = "NONE"
)

// DefaultStages is the production cascade order. The ensemble fallback is
// opt-in; it trades precision for recall and is validated through the
// benchmark harness before being enabled.
var DefaultStages = []Stage{StageExact, StageNormalized, StageFuzzy}

// StagesWithEnsemble appends the relaxed fallback to the default cascade.
var StagesWithEnsemble = []Stage{StageExact, StageNormalized, StageFuzzy, StageEnsemble}

// Reason codes attached to degraded or unmatched results.
const (
	ReasonMalformedInput  = "malformed_input"
	ReasonUnresolvedState = "unresolved_state"
	ReasonBelowThreshold  = "below_threshold"
	ReasonNoCandidates    = "no_candidates"
)

// Record is one raw counselling row. Only name and state drive matching;
// course and category travel through for reporting.
type Record struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Course   string `json:"course,omitempty"`
	Category string `json:"category,omitempty"`
	Rank     int    `json:"rank,omitempty"`
}

// Result is the outcome of matching one record. It is consumed by the
// calling batch job and never persisted here.
type Result struct {
	CandidateID    string        `json:"candidate_id,omitempty"`
	Stage          Stage         `json:"stage"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time_ns"`

	// StateResolved is false when the raw state could not be normalized
	// and matching degraded to a whole-registry scan.
	StateResolved bool `json:"state_resolved"`

	// Reason explains a NONE result or a degradation flag.
	Reason string `json:"reason,omitempty"`

	// NormalizedName and NormalizedState echo the lookup key so unmatched
	// results can feed the review backlog.
	NormalizedName  string `json:"normalized_name,omitempty"`
	NormalizedState string `json:"normalized_state,omitempty"`
}

// Matched reports whether the result carries a candidate.
func (r Result) Matched() bool {
	return r.CandidateID != "" && r.Stage != StageNone
}
