package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadJSON reads a snapshot from a JSON file. Used by tests, the promote
// command and sites without a database export.
func LoadJSON(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SaveJSON writes a snapshot atomically via a temp file rename.
func SaveJSON(snapshot *Snapshot, path string) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Promote appends newly discovered institutions to a snapshot, bumping its
// version. The result feeds the next index rebuild; the input snapshot is
// not modified.
func Promote(snapshot *Snapshot, additions []Institution, version string) (*Snapshot, error) {
	existing := make(map[string]bool, len(snapshot.Institutions))
	for _, inst := range snapshot.Institutions {
		existing[inst.ID] = true
	}

	out := &Snapshot{
		Version:      version,
		Institutions: append([]Institution(nil), snapshot.Institutions...),
	}

	for _, add := range additions {
		if add.ID == "" {
			return nil, fmt.Errorf("promote: institution %q has no id", add.Name)
		}
		if existing[add.ID] {
			// Already promoted in an earlier run; promotion is idempotent.
			continue
		}
		existing[add.ID] = true
		out.Institutions = append(out.Institutions, Institution{
			ID:      add.ID,
			Name:    add.Name,
			State:   add.State,
			Address: add.Address,
			Type:    add.Type,
		})
	}

	return out, nil
}
