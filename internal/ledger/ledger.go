// Package ledger persists human-curated override mappings and newly
// discovered institutions. Both files are append-only JSON arrays; a later
// mapping for the same key supersedes earlier ones at load time, so no entry
// is ever rewritten and a review session can always be audited.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	overridesFile       = "overrides.json"
	newInstitutionsFile = "new_institutions.json"
	backlogFile         = "backlog.json"
	lockFile            = ".ledger.lock"

	// SourceManual marks reviewer-curated mappings.
	SourceManual = "MANUAL"
)

// ErrCorruptLedger indicates a ledger file exists but cannot be parsed.
// Fatal at startup: matching must not run against a half-read ledger.
var ErrCorruptLedger = errors.New("corrupt ledger file")

// Key identifies an override mapping.
type Key struct {
	NormalizedName  string
	NormalizedState string
}

// OverrideMapping links a normalized raw pair to a canonical institution.
type OverrideMapping struct {
	NormalizedName  string    `json:"normalized_name"`
	NormalizedState string    `json:"normalized_state"`
	CanonicalID     string    `json:"canonical_id"`
	Source          string    `json:"source"`
	Reviewer        string    `json:"reviewer,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewInstitution is an institution discovered during review, promoted into
// the registry on the next index rebuild.
type NewInstitution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Address   string    `json:"address,omitempty"`
	Type      string    `json:"type,omitempty"`
	Reviewer  string    `json:"reviewer,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BacklogEntry is an unmatched raw pair with its affected-record count.
type BacklogEntry struct {
	RawName         string `json:"raw_name"`
	NormalizedName  string `json:"normalized_name"`
	NormalizedState string `json:"normalized_state"`
	Records         int    `json:"records"`
}

// Ledger loads and appends override data. In-process writes are serialized
// with a mutex; cross-process writes with a file lock, so concurrent review
// sessions never interleave id generation.
type Ledger struct {
	dir  string
	lock *flock.Flock

	mu        sync.Mutex
	overrides map[Key]OverrideMapping
	added     []NewInstitution
}

// Open loads the ledger from dir, creating it when absent. A file that
// exists but does not parse aborts startup.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	l := &Ledger{
		dir:       dir,
		lock:      flock.New(filepath.Join(dir, lockFile)),
		overrides: make(map[Key]OverrideMapping),
	}

	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Lookup resolves a normalized pair through the override map. The latest
// mapping for the key wins.
func (l *Ledger) Lookup(normalizedName, normalizedState string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.overrides[Key{normalizedName, normalizedState}]
	if !ok {
		return "", false
	}
	return m.CanonicalID, true
}

// Overrides returns every effective mapping.
func (l *Ledger) Overrides() []OverrideMapping {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]OverrideMapping, 0, len(l.overrides))
	for _, m := range l.overrides {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// NewInstitutions returns the recorded additions in append order.
func (l *Ledger) NewInstitutions() []NewInstitution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]NewInstitution(nil), l.added...)
}

// AppendOverride persists a reviewer decision. The write re-reads the file
// under the lock so decisions from concurrent sessions are never dropped.
func (l *Ledger) AppendOverride(m OverrideMapping) error {
	if m.Source == "" {
		m.Source = SourceManual
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	err := l.withFileLock(func() error {
		var entries []OverrideMapping
		if err := readJSONArray(l.path(overridesFile), &entries); err != nil {
			return err
		}
		entries = append(entries, m)
		return writeJSONArray(l.path(overridesFile), entries)
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.overrides[Key{m.NormalizedName, m.NormalizedState}] = m
	l.mu.Unlock()
	return nil
}

// AppendNewInstitution records a discovered institution with a
// deterministically generated id and returns the stored entry. If another
// session claimed the same sequence number between load and write, the id is
// regenerated from the fresh file contents rather than failing the decision.
func (l *Ledger) AppendNewInstitution(inst NewInstitution) (NewInstitution, error) {
	if inst.Timestamp.IsZero() {
		inst.Timestamp = time.Now().UTC()
	}

	err := l.withFileLock(func() error {
		var entries []NewInstitution
		if err := readJSONArray(l.path(newInstitutionsFile), &entries); err != nil {
			return err
		}

		taken := make(map[string]bool, len(entries))
		for _, e := range entries {
			taken[e.ID] = true
		}

		seq := len(entries) + 1
		inst.ID = GenerateID(inst.Name, inst.State, seq)
		for taken[inst.ID] {
			seq++
			inst.ID = GenerateID(inst.Name, inst.State, seq)
		}

		entries = append(entries, inst)
		return writeJSONArray(l.path(newInstitutionsFile), entries)
	})
	if err != nil {
		return NewInstitution{}, err
	}

	l.mu.Lock()
	l.added = append(l.added, inst)
	l.mu.Unlock()
	return inst, nil
}

// RecordBacklog merges unmatched pairs from a batch run into the review
// backlog, summing affected-record counts per key.
func (l *Ledger) RecordBacklog(entries []BacklogEntry) error {
	return l.withFileLock(func() error {
		var existing []BacklogEntry
		if err := readJSONArray(l.path(backlogFile), &existing); err != nil {
			return err
		}

		merged := make(map[Key]*BacklogEntry, len(existing)+len(entries))
		order := make([]Key, 0, len(existing)+len(entries))
		for _, e := range existing {
			e := e
			k := Key{e.NormalizedName, e.NormalizedState}
			merged[k] = &e
			order = append(order, k)
		}
		for _, e := range entries {
			k := Key{e.NormalizedName, e.NormalizedState}
			if cur, ok := merged[k]; ok {
				cur.Records += e.Records
				continue
			}
			e := e
			merged[k] = &e
			order = append(order, k)
		}

		out := make([]BacklogEntry, 0, len(order))
		for _, k := range order {
			out = append(out, *merged[k])
		}
		return writeJSONArray(l.path(backlogFile), out)
	})
}

// Backlog returns unmatched pairs ranked by affected-record count, skipping
// pairs that have since gained an override.
func (l *Ledger) Backlog() ([]BacklogEntry, error) {
	var entries []BacklogEntry
	if err := readJSONArray(l.path(backlogFile), &entries); err != nil {
		return nil, err
	}

	l.mu.Lock()
	filtered := entries[:0]
	for _, e := range entries {
		if _, done := l.overrides[Key{e.NormalizedName, e.NormalizedState}]; !done {
			filtered = append(filtered, e)
		}
	}
	l.mu.Unlock()

	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Records > filtered[j].Records })
	return filtered, nil
}

// ClearBacklogEntry drops a resolved pair from the backlog file.
func (l *Ledger) ClearBacklogEntry(normalizedName, normalizedState string) error {
	return l.withFileLock(func() error {
		var entries []BacklogEntry
		if err := readJSONArray(l.path(backlogFile), &entries); err != nil {
			return err
		}
		out := entries[:0]
		for _, e := range entries {
			if e.NormalizedName != normalizedName || e.NormalizedState != normalizedState {
				out = append(out, e)
			}
		}
		return writeJSONArray(l.path(backlogFile), out)
	})
}

// reload reads both ledger files into memory.
func (l *Ledger) reload() error {
	var overrides []OverrideMapping
	if err := readJSONArray(l.path(overridesFile), &overrides); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.overrides = make(map[Key]OverrideMapping, len(overrides))
	for _, m := range overrides {
		// Append order is chronological: later entries supersede.
		l.overrides[Key{m.NormalizedName, m.NormalizedState}] = m
	}

	l.added = nil
	return readJSONArray(l.path(newInstitutionsFile), &l.added)
}

func (l *Ledger) withFileLock(fn func() error) error {
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	defer l.lock.Unlock()
	return fn()
}

func (l *Ledger) path(name string) string {
	return filepath.Join(l.dir, name)
}

func readJSONArray(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptLedger, path, err)
	}
	return nil
}

func writeJSONArray(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
