package registry

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/neetlogiq/collegematch/internal/normalize"
)

// nameStateKey keys the exact and normalized tiers.
type nameStateKey struct {
	name  string
	state string
}

// lookupTier is a name+state map that only answers when the key identifies a
// single institution. Several district hospitals share one display name
// within a state; those keys go dark here and resolve downstream where the
// address can separate them.
type lookupTier struct {
	entries   map[nameStateKey]*Institution
	ambiguous map[nameStateKey]bool
}

func newLookupTier() lookupTier {
	return lookupTier{
		entries:   make(map[nameStateKey]*Institution),
		ambiguous: make(map[nameStateKey]bool),
	}
}

func (t lookupTier) add(key nameStateKey, inst *Institution) {
	if t.ambiguous[key] {
		return
	}
	if existing, ok := t.entries[key]; ok {
		if existing != inst {
			delete(t.entries, key)
			t.ambiguous[key] = true
		}
		return
	}
	t.entries[key] = inst
}

func (t lookupTier) get(key nameStateKey) *Institution {
	return t.entries[key]
}

// Index holds the lookup tiers over one registry snapshot. It is built once,
// immutable afterwards, and safe to share read-only across matcher workers.
type Index struct {
	version string
	norm    *normalize.Normalizer

	byState       map[string][]*Institution
	exactCurrent  lookupTier
	exactPrevious lookupTier
	normalized    lookupTier
	composite     map[string]*Institution
	all           []*Institution
}

// Build constructs the index tiers from a snapshot. Normalized fields are
// computed here; a composite key collision is a fatal build error so that
// duplicate display names within a state always remain distinguishable.
func Build(snapshot *Snapshot, norm *normalize.Normalizer) (*Index, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	idx := &Index{
		version:       snapshot.Version,
		norm:          norm,
		byState:       make(map[string][]*Institution),
		exactCurrent:  newLookupTier(),
		exactPrevious: newLookupTier(),
		normalized:    newLookupTier(),
		composite:     make(map[string]*Institution, len(snapshot.Institutions)),
		all:           make([]*Institution, 0, len(snapshot.Institutions)),
	}

	for i := range snapshot.Institutions {
		inst := &snapshot.Institutions[i]
		inst.ordinal = i

		state, _ := norm.State(inst.State)
		inst.NormalizedState = state
		inst.NormalizedName = norm.Name(inst.Name)
		inst.NormalizedAddress = norm.Address(inst.Address, state)
		inst.CompositeKey = normalize.CompositeKey(inst.NormalizedName, inst.NormalizedAddress)

		if prev, dup := idx.composite[inst.CompositeKey]; dup {
			return nil, fmt.Errorf("%w: %q shared by %s and %s",
				ErrDuplicateCompositeKey, inst.CompositeKey, prev.ID, inst.ID)
		}
		idx.composite[inst.CompositeKey] = inst

		idx.byState[state] = append(idx.byState[state], inst)
		idx.all = append(idx.all, inst)

		idx.normalized.add(nameStateKey{inst.NormalizedName, state}, inst)

		addExact(idx.exactCurrent, inst.Name, inst)
		if inst.PreviousName != "" {
			addExact(idx.exactPrevious, inst.PreviousName, inst)
		}
	}

	return idx, nil
}

func addExact(tier lookupTier, name string, inst *Institution) {
	cleaned := strings.ToUpper(strings.TrimSpace(name))
	tier.add(nameStateKey{cleaned, strings.ToUpper(strings.TrimSpace(inst.State))}, inst)
	tier.add(nameStateKey{cleaned, inst.NormalizedState}, inst)
}

// Version reports the snapshot version the index was built from.
func (idx *Index) Version() string {
	return idx.version
}

// Size reports the number of indexed institutions.
func (idx *Index) Size() int {
	return len(idx.all)
}

// Exact probes the exact tier with a display name and state, both compared
// case-insensitively. Current names shadow previous names, and a name shared
// by several institutions in the state returns nil.
func (idx *Index) Exact(name, state string) *Institution {
	key := nameStateKey{
		strings.ToUpper(strings.TrimSpace(name)),
		strings.ToUpper(strings.TrimSpace(state)),
	}
	if inst := idx.exactCurrent.get(key); inst != nil {
		return inst
	}
	return idx.exactPrevious.get(key)
}

// Normalized probes the normalized tier with already-normalized inputs.
// Ambiguous names return nil.
func (idx *Index) Normalized(normalizedName, normalizedState string) *Institution {
	return idx.normalized.get(nameStateKey{normalizedName, normalizedState})
}

// ByCompositeKey returns the institution carrying the given composite key.
func (idx *Index) ByCompositeKey(key string) *Institution {
	return idx.composite[key]
}

// InState returns the institutions registered in a normalized state. The
// returned slice is shared and must not be mutated.
func (idx *Index) InState(normalizedState string) []*Institution {
	return idx.byState[normalizedState]
}

// All returns every indexed institution in snapshot order. Shared slice; do
// not mutate.
func (idx *Index) All() []*Institution {
	return idx.all
}

// Normalizer exposes the normalizer the index was built with so matching
// uses identical canonical forms.
func (idx *Index) Normalizer() *normalize.Normalizer {
	return idx.norm
}

// Holder publishes the current index to concurrent readers. A rebuild swaps
// the pointer atomically; batches that captured the old index keep reading a
// consistent snapshot for their whole run.
type Holder struct {
	current atomic.Pointer[Index]
}

// NewHolder creates a holder seeded with idx.
func NewHolder(idx *Index) *Holder {
	h := &Holder{}
	h.current.Store(idx)
	return h
}

// Current returns the published index.
func (h *Holder) Current() (*Index, error) {
	idx := h.current.Load()
	if idx == nil {
		return nil, ErrIndexNotBuilt
	}
	return idx, nil
}

// Swap publishes a freshly built index.
func (h *Holder) Swap(idx *Index) {
	h.current.Store(idx)
}

// Rebuild promotes additions into the snapshot, builds a fresh index and
// publishes it. In-flight readers keep the index they captured.
func (h *Holder) Rebuild(snapshot *Snapshot, additions []Institution, version string, norm *normalize.Normalizer) (*Index, error) {
	promoted, err := Promote(snapshot, additions, version)
	if err != nil {
		return nil, err
	}
	idx, err := Build(promoted, norm)
	if err != nil {
		return nil, err
	}
	h.Swap(idx)
	return idx, nil
}
