package registry

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// LoadSQLite reads a snapshot from the curation pipeline's SQLite export.
// The institutions table mirrors the snapshot schema: id, name,
// previous_name, state, address, institution_type, plus a single-row
// snapshot_meta table carrying the version.
func LoadSQLite(path string) (*Snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite snapshot: %w", err)
	}
	defer db.Close()

	snapshot := &Snapshot{}

	if err := db.QueryRow(`SELECT version FROM snapshot_meta LIMIT 1`).Scan(&snapshot.Version); err != nil {
		return nil, fmt.Errorf("read snapshot version: %w", err)
	}

	rows, err := db.Query(`
		SELECT id, name, COALESCE(previous_name, ''), state,
		       COALESCE(address, ''), COALESCE(institution_type, '')
		FROM institutions
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("read institutions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inst Institution
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.PreviousName,
			&inst.State, &inst.Address, &inst.Type); err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		snapshot.Institutions = append(snapshot.Institutions, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read institutions: %w", err)
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
