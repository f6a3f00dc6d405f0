package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONMissing(t *testing.T) {
	_, err := LoadJSON(filepath.Join(t.TempDir(), "absent.json"))
	require.ErrorIs(t, err, ErrSnapshotMissing)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "registry.json")
	in := &Snapshot{Version: "2025-08", Institutions: []Institution{
		{ID: "KA-001", Name: "A COLLEGE", State: "KARNATAKA", Address: "X"},
	}}

	require.NoError(t, SaveJSON(in, path))

	out, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "2025-08", out.Version)
	require.Len(t, out.Institutions, 1)
	assert.Equal(t, "KA-001", out.Institutions[0].ID)
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Snapshot{Version: "v"}).Validate(), "empty snapshot")

	dup := &Snapshot{Version: "v", Institutions: []Institution{
		{ID: "KA-001", Name: "A"},
		{ID: "KA-001", Name: "B"},
	}}
	assert.Error(t, dup.Validate(), "duplicate id")

	noID := &Snapshot{Version: "v", Institutions: []Institution{{Name: "A"}}}
	assert.Error(t, noID.Validate(), "missing id")
}

func TestPromote(t *testing.T) {
	base := &Snapshot{Version: "2025-07", Institutions: []Institution{
		{ID: "KA-001", Name: "A COLLEGE", State: "KARNATAKA", Address: "X"},
	}}

	additions := []Institution{
		{ID: "NEW-KA-AB12CD34-001", Name: "B HOSPITAL", State: "KARNATAKA"},
		{ID: "KA-001", Name: "A COLLEGE RENAMED", State: "KARNATAKA"},
	}

	out, err := Promote(base, additions, "2025-08")
	require.NoError(t, err)
	assert.Equal(t, "2025-08", out.Version)
	require.Len(t, out.Institutions, 2, "existing id must not be promoted twice")
	assert.Equal(t, "A COLLEGE", out.Institutions[0].Name, "existing record unchanged")
	assert.Equal(t, "NEW-KA-AB12CD34-001", out.Institutions[1].ID)

	assert.Len(t, base.Institutions, 1, "input snapshot not mutated")

	_, err = Promote(base, []Institution{{Name: "NO ID"}}, "2025-09")
	assert.Error(t, err)
}
