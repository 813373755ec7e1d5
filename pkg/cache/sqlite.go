package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps entries in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens the database at dsn in WAL mode and creates the table.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite to avoid locking issues.
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS cache_entries (
			fingerprint TEXT PRIMARY KEY,
			status_code INTEGER NOT NULL,
			body BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", stmt, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, fp Fingerprint) (*Entry, error) {
	var (
		entry    Entry
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status_code, body, stored_at FROM cache_entries WHERE fingerprint = ?`,
		fp.String(),
	).Scan(&entry.StatusCode, &entry.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("select cache entry: %w", err)
	}
	entry.StoredAt = time.Unix(0, storedAt)
	return &entry, nil
}

func (s *SQLiteStore) Save(ctx context.Context, fp Fingerprint, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (fingerprint, status_code, body, stored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			status_code = excluded.status_code,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		fp.String(), entry.StatusCode, entry.Body, entry.StoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, fp Fingerprint) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fingerprint = ?`, fp.String()); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Backend() string { return BackendSQLite }
