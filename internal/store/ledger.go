package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forgeport/forgeport/internal/model"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS imported_issues (
	gitlab_id     INTEGER PRIMARY KEY,
	gitlab_iid    INTEGER NOT NULL,
	github_number INTEGER NOT NULL,
	github_url    TEXT NOT NULL,
	imported_at   TEXT NOT NULL
);
`

// Ledger records which source issues have already been created on the
// destination, so a re-run after a partial failure skips completed work
// instead of duplicating it.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens or creates the ledger database inside the export
// directory.
func OpenLedger(dir string) (*Ledger, error) {
	path := filepath.Join(dir, LedgerFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	// SQLite is single-writer; limit the pool to one connection to avoid
	// lock contention and make the single-connection intent explicit.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores the outcome of one issue creation. Recording the same source
// issue twice overwrites the previous row.
func (l *Ledger) Record(c model.Correlation) error {
	_, err := l.db.Exec(
		`INSERT OR REPLACE INTO imported_issues
		 (gitlab_id, gitlab_iid, github_number, github_url, imported_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.GitLabID, c.GitLabIID, c.GitHubNumber, c.GitHubURL,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording imported issue: %w", err)
	}
	return nil
}

// Lookup returns the recorded correlation for a source issue id, or nil when
// the issue has not been imported yet.
func (l *Ledger) Lookup(gitlabID int) (*model.Correlation, error) {
	var c model.Correlation
	err := l.db.QueryRow(
		`SELECT gitlab_id, gitlab_iid, github_number, github_url
		 FROM imported_issues WHERE gitlab_id = ?`, gitlabID,
	).Scan(&c.GitLabID, &c.GitLabIID, &c.GitHubNumber, &c.GitHubURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	return &c, nil
}

// All returns every recorded correlation ordered by source internal id,
// for display and for rebuilding the import summary.
func (l *Ledger) All() ([]model.Correlation, error) {
	rows, err := l.db.Query(
		`SELECT gitlab_id, gitlab_iid, github_number, github_url
		 FROM imported_issues ORDER BY gitlab_iid`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var all []model.Correlation
	for rows.Next() {
		var c model.Correlation
		if err := rows.Scan(&c.GitLabID, &c.GitLabIID, &c.GitHubNumber, &c.GitHubURL); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger rows: %w", err)
	}

	return all, nil
}
