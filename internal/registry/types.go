// Package registry loads canonical institution snapshots and builds the
// read-only lookup tiers the cascading matcher probes.
package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotMissing indicates the configured snapshot source does not exist.
	ErrSnapshotMissing = errors.New("registry snapshot missing")

	// ErrDuplicateCompositeKey indicates two institutions collapsed to the
	// same normalizedName+normalizedAddress key.
	ErrDuplicateCompositeKey = errors.New("duplicate composite key")

	// ErrIndexNotBuilt indicates a lookup was attempted before Build.
	ErrIndexNotBuilt = errors.New("registry index not built")
)

// Institution is one canonical registry record. Normalized fields are
// computed at index build time; records are immutable afterwards.
type Institution struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PreviousName string `json:"previous_name,omitempty"`
	State        string `json:"state"`
	Address      string `json:"address"`
	Type         string `json:"type,omitempty"`

	NormalizedName    string `json:"-"`
	NormalizedState   string `json:"-"`
	NormalizedAddress string `json:"-"`
	CompositeKey      string `json:"-"`

	// ordinal is the record's position in the snapshot, used for the
	// first-registered tie-break.
	ordinal int
}

// Ordinal returns the institution's snapshot position.
func (inst *Institution) Ordinal() int {
	return inst.ordinal
}

// Snapshot is a versioned, read-only export of the canonical registry
// produced by the external curation pipeline.
type Snapshot struct {
	Version      string        `json:"version"`
	Institutions []Institution `json:"institutions"`
}

// Validate rejects snapshots unusable for index building.
func (s *Snapshot) Validate() error {
	if len(s.Institutions) == 0 {
		return fmt.Errorf("snapshot %q: no institutions", s.Version)
	}
	seen := make(map[string]bool, len(s.Institutions))
	for _, inst := range s.Institutions {
		if inst.ID == "" {
			return fmt.Errorf("snapshot %q: institution %q has no id", s.Version, inst.Name)
		}
		if seen[inst.ID] {
			return fmt.Errorf("snapshot %q: duplicate institution id %s", s.Version, inst.ID)
		}
		seen[inst.ID] = true
	}
	return nil
}
