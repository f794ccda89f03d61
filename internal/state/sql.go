package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// SQLStore persists the state document in SQLite or Postgres, one row per
// backend key. Reads scan the whole table and writes replace it inside a
// transaction, preserving the full-document semantics of the file store.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLiteStore opens (and if needed initialises) a SQLite-backed store.
// dsn can be a plain file path or a SQLite DSN.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "relaymux-state.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite state store: %w", err)
	}
	s := &SQLStore{db: db, dialect: dialectSQLite}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore opens a Postgres-backed store.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres state store: %w", err)
	}
	s := &SQLStore{db: db, dialect: dialectPostgres}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s state store: %w", s.dialect, err)
	}
	// unblock_at is RFC3339 text so the schema is identical on both dialects.
	ddl := `
CREATE TABLE IF NOT EXISTS backend_state (
	key TEXT PRIMARY KEY,
	used_tokens INTEGER NOT NULL,
	unblock_at TEXT
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize state schema: %w", err)
	}
	return nil
}

// Read loads all records. Rows with an unparseable unblock_at are loaded
// without a cooldown rather than failing the read.
func (s *SQLStore) Read(ctx context.Context) (State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, used_tokens, unblock_at FROM backend_state`)
	if err != nil {
		return State{}, nil
	}
	defer rows.Close()

	out := State{}
	for rows.Next() {
		var (
			key       string
			used      int
			unblockAt sql.NullString
		)
		if err := rows.Scan(&key, &used, &unblockAt); err != nil {
			continue
		}
		rec := Record{UsedTokens: used}
		if unblockAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, unblockAt.String); err == nil {
				rec.UnblockAt = &ts
			}
		}
		out[key] = rec
	}
	return out, nil
}

// Write replaces the whole table with the given state.
func (s *SQLStore) Write(ctx context.Context, st State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backend_state`); err != nil {
		return fmt.Errorf("clearing state: %w", err)
	}
	insert := `INSERT INTO backend_state (key, used_tokens, unblock_at) VALUES ($1, $2, $3)`
	if s.dialect == dialectSQLite {
		insert = `INSERT INTO backend_state (key, used_tokens, unblock_at) VALUES (?, ?, ?)`
	}
	for key, rec := range st {
		var unblockAt interface{}
		if rec.UnblockAt != nil {
			unblockAt = rec.UnblockAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := tx.ExecContext(ctx, insert, key, rec.UsedTokens, unblockAt); err != nil {
			return fmt.Errorf("writing state for %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state write: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }
