package matcher

import (
	"strings"

	"github.com/neetlogiq/collegematch/internal/normalize"
)

// disambiguate separates tied candidates using the location fragment split
// off the raw name. It returns nil when the fragment carries no signal, in
// which case the caller falls back to its own deterministic ordering.
func disambiguate(tied []scored, fragment string) *scored {
	if fragment == "" {
		return nil
	}

	best := -1
	var winners []scored
	for _, cand := range tied {
		n := fragmentAffinity(fragment, cand.inst.NormalizedAddress)
		if n > best {
			best = n
			winners = winners[:0]
		}
		if n == best {
			winners = append(winners, cand)
		}
	}
	if best <= 0 {
		return nil
	}

	// Residual ties resolve to the registry's earliest entry so repeated
	// runs always pick the same institution.
	winner := winners[0]
	for _, cand := range winners[1:] {
		if cand.inst.Ordinal() < winner.inst.Ordinal() {
			winner = cand
		}
	}
	return &winner
}

// fragmentAffinity counts how many fragment tokens appear in the address,
// with a bonus when the whole fragment occurs verbatim.
func fragmentAffinity(fragment, address string) int {
	if address == "" {
		return 0
	}
	n := normalize.SharedTokens(normalize.Tokens(fragment), normalize.Tokens(address))
	if strings.Contains(" "+address+" ", " "+fragment+" ") {
		n++
	}
	return n
}
