package syncer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// tsLayout is fixed width so timestamps sort lexically
const tsLayout = "2006-01-02T15:04:05.000000000Z"

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS synced_records (
	target      TEXT NOT NULL,
	external_id TEXT NOT NULL,
	hash        TEXT NOT NULL,
	synced_at   TEXT NOT NULL,
	PRIMARY KEY (target, external_id)
);
CREATE TABLE IF NOT EXISTS sync_runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	target      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	created     INTEGER NOT NULL,
	updated     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	complete    INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS sync_runs_target ON sync_runs (target, started_at);
`

// Ledger is a local SQLite file remembering what each sync last wrote, so
// unchanged records are skipped on the next run
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// OpenLedger opens or creates the ledger at path. ":memory:" gives a
// throwaway ledger.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync ledger: %w", err)
	}
	// a single connection keeps :memory: ledgers coherent and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise sync ledger: %w", err)
	}
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the ledger file
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Hash fingerprints a record's content
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to hash record: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Changed reports whether hash differs from what was last recorded
func (l *Ledger) Changed(ctx context.Context, target, externalID, hash string) (bool, error) {
	var stored string
	err := l.db.QueryRowContext(ctx,
		`SELECT hash FROM synced_records WHERE target = ? AND external_id = ?`,
		target, externalID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read sync ledger: %w", err)
	}
	return stored != hash, nil
}

// Record stores the latest hash for a record
func (l *Ledger) Record(ctx context.Context, target, externalID, hash string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO synced_records (target, external_id, hash, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (target, external_id) DO UPDATE SET hash = excluded.hash, synced_at = excluded.synced_at`,
		target, externalID, hash, l.now().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("failed to write sync ledger: %w", err)
	}
	return nil
}

// RecordRun appends a finished run
func (l *Ledger) RecordRun(ctx context.Context, r *Report) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_runs (target, started_at, finished_at, created, updated, skipped, failed, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Target, r.StartedAt.UTC().Format(tsLayout), l.now().Format(tsLayout),
		r.Created, r.Updated, r.Skipped, r.Failed, r.Complete())
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// LastRun returns when the most recent complete run of target started. The
// zero time means the target has never completed a run.
func (l *Ledger) LastRun(ctx context.Context, target string) (time.Time, error) {
	var started sql.NullString
	err := l.db.QueryRowContext(ctx,
		`SELECT MAX(started_at) FROM sync_runs WHERE target = ? AND complete = 1`, target).Scan(&started)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last sync run: %w", err)
	}
	if !started.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(tsLayout, started.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sync run timestamp %q: %w", started.String, err)
	}
	return t, nil
}

// Forget drops every record for a target so the next run rewrites everything
func (l *Ledger) Forget(ctx context.Context, target string) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM synced_records WHERE target = ?`, target)
	if err != nil {
		return 0, fmt.Errorf("failed to reset sync ledger: %w", err)
	}
	return res.RowsAffected()
}
