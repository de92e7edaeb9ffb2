// Package store persists recruitops data in Postgres (Supabase).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/config"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// DB wraps the Postgres connection pool and hands out repositories
type DB struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open connects to Postgres with the configured pool settings and pings it
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database.url is not set (or export DATABASE_URL)")
	}

	sqlDB, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(sqlDB, logger), nil
}

// New wraps an existing connection
func New(sqlDB *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{db: sqlDB, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SQL exposes the underlying pool for packages that manage their own tables
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Ping checks the connection
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the pool
func (d *DB) Close() error {
	return d.db.Close()
}

// Clients returns the client repository
func (d *DB) Clients() *ClientRepo { return &ClientRepo{q: d.db, now: d.now} }

// Contacts returns the contact repository
func (d *DB) Contacts() *ContactRepo { return &ContactRepo{q: d.db, now: d.now} }

// Candidates returns the candidate repository
func (d *DB) Candidates() *CandidateRepo { return &CandidateRepo{q: d.db, now: d.now} }

// Projects returns the project repository
func (d *DB) Projects() *ProjectRepo { return &ProjectRepo{q: d.db, now: d.now} }

// Placements returns the placement repository
func (d *DB) Placements() *PlacementRepo { return &PlacementRepo{q: d.db, now: d.now} }

// Staffing returns the placement repository with Place bound to d
func (d *DB) Staffing() *Staffing { return &Staffing{PlacementRepo: d.Placements(), db: d} }

// Users returns the user repository
func (d *DB) Users() *UserRepo { return &UserRepo{q: d.db, now: d.now} }

// Transcripts returns the advisor transcript repository
func (d *DB) Transcripts() *TranscriptRepo { return &TranscriptRepo{q: d.db, now: d.now} }

// Tx exposes repositories bound to a single transaction
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *Tx) Clients() *ClientRepo       { return &ClientRepo{q: t.tx, now: t.now} }
func (t *Tx) Contacts() *ContactRepo     { return &ContactRepo{q: t.tx, now: t.now} }
func (t *Tx) Candidates() *CandidateRepo { return &CandidateRepo{q: t.tx, now: t.now} }
func (t *Tx) Projects() *ProjectRepo     { return &ProjectRepo{q: t.tx, now: t.now} }
func (t *Tx) Placements() *PlacementRepo { return &PlacementRepo{q: t.tx, now: t.now} }

// WithTx runs fn in a transaction. The transaction commits when fn returns nil
// and rolls back on error or panic.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, now: d.now}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
