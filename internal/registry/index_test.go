package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neetlogiq/collegematch/internal/normalize"
)

func buildTestIndex(t *testing.T, institutions []Institution) *Index {
	t.Helper()
	idx, err := Build(&Snapshot{Version: "test", Institutions: institutions}, normalize.New(nil))
	require.NoError(t, err)
	return idx
}

func TestBuildComputesNormalizedFields(t *testing.T) {
	idx := buildTestIndex(t, []Institution{
		{ID: "KA-001", Name: "Govt. Medical College", State: "Karnatka", Address: "Irwin Road, Mysore 570001"},
	})

	inst := idx.All()[0]
	assert.Equal(t, "GOVERNMENT MEDICAL COLLEGE", inst.NormalizedName)
	assert.Equal(t, "KARNATAKA", inst.NormalizedState)
	assert.Equal(t, "IRWIN ROAD MYSORE", inst.NormalizedAddress)
	assert.Equal(t, "GOVERNMENT MEDICAL COLLEGE,IRWIN ROAD MYSORE", inst.CompositeKey)
	assert.Equal(t, 0, inst.Ordinal())
}

func TestBuildRejectsDuplicateCompositeKey(t *testing.T) {
	_, err := Build(&Snapshot{Version: "test", Institutions: []Institution{
		{ID: "KA-001", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "MAIN ROAD TUMKUR"},
		{ID: "KA-002", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "MAIN ROAD, TUMKUR"},
	}}, normalize.New(nil))
	require.ErrorIs(t, err, ErrDuplicateCompositeKey)
}

func TestExactTier(t *testing.T) {
	idx := buildTestIndex(t, []Institution{
		{ID: "KA-001", Name: "RAJIV GANDHI INSTITUTE OF CHEST DISEASES", PreviousName: "SDS TUBERCULOSIS SANATORIUM", State: "KARNATAKA", Address: "BANGALORE"},
		{ID: "KA-101", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "TUMKUR"},
		{ID: "KA-102", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "HASSAN"},
	})

	got := idx.Exact("rajiv gandhi institute of chest diseases", "karnataka")
	require.NotNil(t, got)
	assert.Equal(t, "KA-001", got.ID)

	got = idx.Exact("SDS TUBERCULOSIS SANATORIUM", "KARNATAKA")
	require.NotNil(t, got)
	assert.Equal(t, "KA-001", got.ID, "previous name should stay searchable")

	assert.Nil(t, idx.Exact("DISTRICT HOSPITAL", "KARNATAKA"),
		"a name shared by two institutions must not resolve on the exact tier")
}

func TestExactTierCurrentNameShadowsPreviousName(t *testing.T) {
	idx := buildTestIndex(t, []Institution{
		{ID: "KA-001", Name: "CITY HOSPITAL", PreviousName: "", State: "KARNATAKA", Address: "BANGALORE"},
		{ID: "KA-002", Name: "METRO MEDICAL CENTRE", PreviousName: "CITY HOSPITAL", State: "KARNATAKA", Address: "MYSORE"},
	})

	got := idx.Exact("CITY HOSPITAL", "KARNATAKA")
	require.NotNil(t, got)
	assert.Equal(t, "KA-001", got.ID, "the institution currently carrying the name wins")
}

func TestNormalizedTier(t *testing.T) {
	idx := buildTestIndex(t, []Institution{
		{ID: "KA-001", Name: "GOVT MEDICAL COLLEGE MYSORE", State: "KARNATAKA", Address: "IRWIN ROAD"},
		{ID: "KA-101", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "TUMKUR"},
		{ID: "KA-102", Name: "DIST HOSPITAL", State: "KARNATAKA", Address: "HASSAN"},
	})

	got := idx.Normalized("GOVERNMENT MEDICAL COLLEGE MYSORE", "KARNATAKA")
	require.NotNil(t, got)
	assert.Equal(t, "KA-001", got.ID)

	// DIST HOSPITAL normalizes to DISTRICT HOSPITAL, colliding with KA-101.
	assert.Nil(t, idx.Normalized("DISTRICT HOSPITAL", "KARNATAKA"))
}

func TestByCompositeKey(t *testing.T) {
	idx := buildTestIndex(t, []Institution{
		{ID: "KA-101", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "MAIN ROAD TUMKUR"},
		{ID: "KA-102", Name: "DISTRICT HOSPITAL", State: "KARNATAKA", Address: "RACE COURSE ROAD HASSAN"},
	})

	// The composite key resolves institutions the ambiguous name tiers cannot.
	got := idx.ByCompositeKey("DISTRICT HOSPITAL,MAIN ROAD TUMKUR")
	require.NotNil(t, got)
	assert.Equal(t, "KA-101", got.ID)

	assert.Nil(t, idx.ByCompositeKey("DISTRICT HOSPITAL,NOWHERE"))
}

func TestInState(t *testing.T) {
	idx := buildTestIndex(t, []Institution{
		{ID: "KA-001", Name: "A COLLEGE", State: "KARNATAKA", Address: "X"},
		{ID: "TN-001", Name: "B COLLEGE", State: "TAMILNADU", Address: "Y"},
	})

	assert.Len(t, idx.InState("KARNATAKA"), 1)
	assert.Len(t, idx.InState("TAMIL NADU"), 1, "state typo should fold into the canonical bucket")
	assert.Empty(t, idx.InState("KERALA"))
}

func TestHolderSwap(t *testing.T) {
	h := &Holder{}
	_, err := h.Current()
	require.ErrorIs(t, err, ErrIndexNotBuilt)

	first := buildTestIndex(t, []Institution{{ID: "KA-001", Name: "A COLLEGE", State: "KARNATAKA", Address: "X"}})
	h.Swap(first)

	got, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, got.Size())

	second := buildTestIndex(t, []Institution{
		{ID: "KA-001", Name: "A COLLEGE", State: "KARNATAKA", Address: "X"},
		{ID: "KA-002", Name: "B COLLEGE", State: "KARNATAKA", Address: "Y"},
	})
	h.Swap(second)

	got, err = h.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Size())
}

func TestHolderRebuild(t *testing.T) {
	base := &Snapshot{Version: "2025-07", Institutions: []Institution{
		{ID: "KA-001", Name: "A COLLEGE", State: "KARNATAKA", Address: "X"},
	}}
	norm := normalize.New(nil)

	first, err := Build(base, norm)
	require.NoError(t, err)
	h := NewHolder(first)

	additions := []Institution{
		{ID: "NEW-KA-AB12CD34-001", Name: "B HOSPITAL", State: "KARNATAKA", Address: "Y"},
	}
	idx, err := h.Rebuild(base, additions, "2025-08", norm)
	require.NoError(t, err)
	assert.Equal(t, "2025-08", idx.Version())
	assert.Equal(t, 2, idx.Size())

	current, err := h.Current()
	require.NoError(t, err)
	assert.Same(t, idx, current)
	assert.Equal(t, 1, first.Size(), "captured index unchanged")
}
