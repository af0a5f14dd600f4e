// Package sqlite persists run history: one row per completed discovery run
// plus the servers it confirmed, so repeat runs against the same family can
// be compared over time.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"modelscout/internal/domain"
)

// Repository stores run history in SQLite.
type Repository struct {
	db *sql.DB
}

// RunRecord describes one completed discovery run.
type RunRecord struct {
	ID              int64
	Family          string
	StartedAt       time.Time
	CompletedAt     time.Time
	TotalCandidates int
	Queries         []string
	ServersFound    int
}

// New opens (and if needed creates) the database at path. ":memory:" gives
// an ephemeral store for tests.
func New(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		family TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		total_candidates INTEGER NOT NULL,
		queries JSON NOT NULL,
		servers_found INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS servers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		ip TEXT NOT NULL,
		port INTEGER NOT NULL,
		org TEXT NOT NULL,
		country TEXT NOT NULL,
		city TEXT NOT NULL,
		data JSON NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_servers_run ON servers(run_id);
	CREATE INDEX IF NOT EXISTS idx_servers_endpoint ON servers(ip, port);
	`
	_, err := r.db.Exec(schema)
	return err
}

// SaveRun records a completed run and its servers in one transaction and
// returns the run ID.
func (r *Repository) SaveRun(ctx context.Context, rec RunRecord, servers []domain.EnrichedServer) (int64, error) {
	queriesJSON, err := json.Marshal(rec.Queries)
	if err != nil {
		return 0, fmt.Errorf("marshal queries: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (family, started_at, completed_at, total_candidates, queries, servers_found)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Family, rec.StartedAt.UTC(), rec.CompletedAt.UTC(), rec.TotalCandidates, string(queriesJSON), len(servers))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, s := range servers {
		data, err := json.Marshal(s)
		if err != nil {
			return 0, fmt.Errorf("marshal server %s: %w", s.IPStr, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO servers (run_id, ip, port, org, country, city, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, s.IPStr, s.Port, s.Org, s.Location.CountryName, s.Location.CityName, string(data)); err != nil {
			return 0, fmt.Errorf("insert server %s: %w", s.IPStr, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, family, started_at, completed_at, total_candidates, queries, servers_found
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var queriesJSON string
		if err := rows.Scan(&rec.ID, &rec.Family, &rec.StartedAt, &rec.CompletedAt, &rec.TotalCandidates, &queriesJSON, &rec.ServersFound); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(queriesJSON), &rec.Queries); err != nil {
			return nil, fmt.Errorf("decode queries for run %d: %w", rec.ID, err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// ServersForRun loads the enriched servers recorded for a run.
func (r *Repository) ServersForRun(ctx context.Context, runID int64) ([]domain.EnrichedServer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM servers WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	defer rows.Close()

	var servers []domain.EnrichedServer
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		var s domain.EnrichedServer
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode server: %w", err)
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}
