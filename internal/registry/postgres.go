package registry

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/neetlogiq/collegematch/internal/config"
)

// PostgresDSN assembles a connection string from the standard PG* environment
// variables, matching how the curation pipeline publishes its database.
func PostgresDSN() string {
	host := config.GetEnv("PGHOST", "localhost")
	port := config.GetEnv("PGPORT", "5432")
	user := config.GetEnv("PGUSER", "postgres")
	password := config.GetEnv("PGPASSWORD", "")
	dbname := config.GetEnv("PGDATABASE", "master_data")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

// LoadPostgres reads a snapshot from the curation pipeline's Postgres
// database. Read-only: one versioned SELECT, no writes.
func LoadPostgres(dsn string) (*Snapshot, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres snapshot: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotMissing, err)
	}

	snapshot := &Snapshot{}

	if err := db.QueryRow(`SELECT version FROM snapshot_meta LIMIT 1`).Scan(&snapshot.Version); err != nil {
		return nil, fmt.Errorf("read snapshot version: %w", err)
	}

	rows, err := db.Query(`
		SELECT id, name, COALESCE(previous_name, ''), state,
		       COALESCE(address, ''), COALESCE(institution_type, '')
		FROM institutions
		ORDER BY id
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
