package matcher

import (
	"sort"
	"strings"
	"time"

	"github.com/neetlogiq/collegematch/internal/config"
	"github.com/neetlogiq/collegematch/internal/ledger"
	"github.com/neetlogiq/collegematch/internal/normalize"
	"github.com/neetlogiq/collegematch/internal/registry"
	"github.com/neetlogiq/collegematch/internal/spell"
)

// Cascade evaluates the configured stages in order, short-circuiting on the
// first confident hit. It holds only read-only state and is safe for
// concurrent use.
type Cascade struct {
	idx        *registry.Index
	overrides  *ledger.Ledger
	corrector  *spell.Corrector
	stages     []Stage
	thresholds config.Thresholds
}

// Options configures cascade construction.
type Options struct {
	// Stages overrides DefaultStages; order is evaluation order.
	Stages []Stage

	// Thresholds default to config.Default().Thresholds when zero.
	Thresholds config.Thresholds

	// Ledger supplies manual overrides; nil disables the MANUAL stage.
	Ledger *ledger.Ledger

	// Corrector supplies spelling correction for the ensemble stage; nil
	// builds one from the index vocabulary.
	Corrector *spell.Corrector
}

// New builds a cascade over an index.
func New(idx *registry.Index, opts Options) *Cascade {
	stages := opts.Stages
	if len(stages) == 0 {
		stages = DefaultStages
	}

	thresholds := opts.Thresholds
	if thresholds.Fuzzy == 0 {
		thresholds = config.Default().Thresholds
	}

	corrector := opts.Corrector
	if corrector == nil {
		corrector = BuildCorrector(idx)
	}

	return &Cascade{
		idx:        idx,
		overrides:  opts.Ledger,
		corrector:  corrector,
		stages:     append([]Stage(nil), stages...),
		thresholds: thresholds,
	}
}

// BuildCorrector indexes the registry's name and address vocabulary for
// token-level spelling correction.
func BuildCorrector(idx *registry.Index) *spell.Corrector {
	c := spell.NewCorrector(2)
	for _, inst := range idx.All() {
		c.AddPhrase(inst.NormalizedName)
		c.AddPhrase(inst.NormalizedAddress)
	}
	return c
}

// Index returns the registry index the cascade reads.
func (c *Cascade) Index() *registry.Index {
	return c.idx
}

// Match resolves one raw (name, state) pair. It never returns an error for
// well-formed input; malformed input degrades to a NONE result with a
// reason code.
func (c *Cascade) Match(rawName, rawState string) Result {
	start := time.Now()

	norm := c.idx.Normalizer()

	if strings.TrimSpace(rawName) == "" {
		return Result{
			Stage:          StageNone,
			Reason:         ReasonMalformedInput,
			ProcessingTime: time.Since(start),
		}
	}

	normState, stateResolved := norm.State(rawState)
	normName := norm.Name(rawName)

	// Raw names often append a location after a comma ("DISTRICT HOSPITAL,
	// MYSORE ROAD"). The primary part drives name comparison; the remainder
	// is a location fragment for disambiguation.
	namePart, fragment := splitLocationFragment(rawName)
	normNamePart := norm.Name(namePart)

	result := Result{
		Stage:           StageNone,
		StateResolved:   stateResolved,
		NormalizedName:  normName,
		NormalizedState: normState,
	}
	if !stateResolved {
		result.Reason = ReasonUnresolvedState
	}

	// Manual overrides preempt every automated stage.
	if c.overrides != nil {
		if id, ok := c.overrides.Lookup(normName, normState); ok {
			result.CandidateID = id
			result.Stage = StageManual
			result.Confidence = 1.0
			result.Reason = ""
			result.ProcessingTime = time.Since(start)
			return result
		}
	}

	query := matchQuery{
		rawName:      rawName,
		rawState:     rawState,
		normName:     normName,
		normNamePart: normNamePart,
		normState:    normState,
		resolved:     stateResolved,
		fragment:     norm.Name(fragment),
	}

	for _, stage := range c.stages {
		var hit *stageHit
		switch stage {
		case StageExact:
			hit = c.exactStage(query)
		case StageNormalized:
			hit = c.normalizedStage(query)
		case StageFuzzy:
			hit = c.fuzzyStage(query)
		case StageEnsemble:
			hit = c.ensembleStage(query)
		}
		if hit != nil {
			result.CandidateID = hit.inst.ID
			result.Stage = hit.stage
			result.Confidence = hit.confidence
			result.ProcessingTime = time.Since(start)
			return result
		}
	}

	if result.Reason == "" {
		result.Reason = ReasonBelowThreshold
	}
	result.ProcessingTime = time.Since(start)
	return result
}

// matchQuery carries the precomputed forms of one raw pair through the
// stages.
type matchQuery struct {
	rawName      string
	rawState     string
	normName     string
	normNamePart string
	normState    string
	resolved     bool
	fragment     string
}

// stageHit is a stage's accepted candidate.
type stageHit struct {
	inst       *registry.Institution
	stage      Stage
	confidence float64
}

// scored pairs a candidate with its similarity for ranking and ties.
type scored struct {
	inst  *registry.Institution
	score float64
}

// pool returns the candidate set for fuzzy scanning: the state's
// institutions when the state resolved, the whole registry otherwise.
func (c *Cascade) pool(q matchQuery) []*registry.Institution {
	if q.resolved {
		return c.idx.InState(q.normState)
	}
	return c.idx.All()
}

// rankCandidates scores the pool against the query and returns candidates
// at or above floor, best first. Ordering is fully deterministic: score
// descending, then composite key ascending.
func (c *Cascade) rankCandidates(pool []*registry.Institution, floor float64, score func(*registry.Institution) float64) []scored {
	var out []scored
	for _, inst := range pool {
		if s := score(inst); s >= floor {
			out = append(out, scored{inst: inst, score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].inst.CompositeKey < out[j].inst.CompositeKey
	})
	return out
}

// splitLocationFragment separates a raw name into its primary part and any
// trailing location fragment. Bracketed qualifiers join the fragment.
func splitLocationFragment(rawName string) (name, fragment string) {
	primary, secondary := normalize.SplitBracketed(rawName)

	if idx := strings.Index(primary, ","); idx >= 0 {
		name = strings.TrimSpace(primary[:idx])
		fragment = strings.TrimSpace(primary[idx+1:])
	} else {
		name = primary
	}

	if secondary != "" {
		if fragment != "" {
			fragment += " " + secondary
		} else {
			fragment = secondary
		}
	}
	return name, fragment
}
