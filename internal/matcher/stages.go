package matcher

import (
	"github.com/neetlogiq/collegematch/internal/normalize"
	"github.com/neetlogiq/collegematch/internal/phonetics"
	"github.com/neetlogiq/collegematch/internal/registry"
)

// exactStage probes the exact tier with the raw name against the raw and
// normalized state forms. Previous names hit here too.
func (c *Cascade) exactStage(q matchQuery) *stageHit {
	if inst := c.idx.Exact(q.rawName, q.rawState); inst != nil {
		return &stageHit{inst: inst, stage: StageExact, confidence: 1.0}
	}
	if q.resolved {
		if inst := c.idx.Exact(q.rawName, q.normState); inst != nil {
			return &stageHit{inst: inst, stage: StageExact, confidence: 1.0}
		}
	}
	return nil
}

// normalizedConfidence is below exact: the correction tables are trusted
// but not infallible.
const normalizedConfidence = 0.95

// normalizedStage probes the normalized tier with the full normalized name,
// then with the primary part when a location fragment was split off.
func (c *Cascade) normalizedStage(q matchQuery) *stageHit {
	if !q.resolved {
		return nil
	}
	if inst := c.idx.Normalized(q.normName, q.normState); inst != nil {
		return &stageHit{inst: inst, stage: StageNormalized, confidence: normalizedConfidence}
	}
	if q.normNamePart != q.normName {
		if inst := c.idx.Normalized(q.normNamePart, q.normState); inst != nil {
			return &stageHit{inst: inst, stage: StageNormalized, confidence: normalizedConfidence}
		}
	}
	return nil
}

// fuzzyStage scans the candidate pool with edit-distance similarity. Ties
// within epsilon of the best score go to the location disambiguator.
func (c *Cascade) fuzzyStage(q matchQuery) *stageHit {
	score := func(inst *registry.Institution) float64 {
		s := nameSimilarity(c.idx, q.normName, inst)
		if q.normNamePart != q.normName {
			if p := nameSimilarity(c.idx, q.normNamePart, inst); p > s {
				s = p
			}
		}
		return s
	}

	ranked := c.rankCandidates(c.pool(q), c.thresholds.Fuzzy, score)
	if len(ranked) == 0 {
		return nil
	}

	tied := tiedLeaders(ranked, c.thresholds.Epsilon)
	if len(tied) == 1 {
		return &stageHit{inst: tied[0].inst, stage: StageFuzzy, confidence: tied[0].score}
	}

	if winner := disambiguate(tied, q.fragment); winner != nil {
		return &stageHit{
			inst:       winner.inst,
			stage:      StageLocationDisambiguated,
			confidence: winner.score,
		}
	}

	// No fragment signal separates the leaders; take the deterministic
	// front-runner rather than abstaining.
	return &stageHit{inst: ranked[0].inst, stage: StageFuzzy, confidence: ranked[0].score}
}

// ensembleStage is the last automated resort: spelling-corrected similarity
// blended with token overlap and a phonetic signal, at a lower threshold.
// It scans the resolved state first and falls back to the whole registry.
func (c *Cascade) ensembleStage(q matchQuery) *stageHit {
	corrected, _ := c.corrector.CorrectPhrase(q.normName)
	correctedPart := corrected
	if q.normNamePart != q.normName {
		correctedPart, _ = c.corrector.CorrectPhrase(q.normNamePart)
	}

	score := func(inst *registry.Institution) float64 {
		s := ensembleScore(c.idx, corrected, inst)
		if correctedPart != corrected {
			if p := ensembleScore(c.idx, correctedPart, inst); p > s {
				s = p
			}
		}
		return s
	}

	pools := [][]*registry.Institution{c.pool(q)}
	if q.resolved {
		pools = append(pools, c.idx.All())
	}

	for _, pool := range pools {
		ranked := c.rankCandidates(pool, c.thresholds.Ensemble, score)
		if len(ranked) == 0 {
			continue
		}
		tied := tiedLeaders(ranked, c.thresholds.Epsilon)
		if len(tied) > 1 {
			// Near-ties use the location fragment to pick among leaders, but
			// the hit is still attributed to this stage.
			if winner := disambiguate(tied, q.fragment); winner != nil {
				return &stageHit{inst: winner.inst, stage: StageEnsemble, confidence: winner.score}
			}
		}
		return &stageHit{inst: ranked[0].inst, stage: StageEnsemble, confidence: ranked[0].score}
	}
	return nil
}

// ensembleScore blends edit-distance similarity with token overlap and a
// phonetic agreement bonus.
func ensembleScore(idx *registry.Index, query string, inst *registry.Institution) float64 {
	sim := nameSimilarity(idx, query, inst)
	overlap := normalize.TokenOverlap(normalize.Tokens(query), normalize.Tokens(inst.NormalizedName))

	score := 0.6*sim + 0.4*overlap
	if phonetics.Match(query, inst.NormalizedName) {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// tiedLeaders returns the leading candidates whose scores sit within epsilon
// of the best. Input must already be sorted best first.
func tiedLeaders(ranked []scored, epsilon float64) []scored {
	best := ranked[0].score
	end := 1
	for end < len(ranked) && best-ranked[end].score <= epsilon {
		end++
	}
	return ranked[:end]
}
