// Package sqlite persists the habit aggregate to an embedded SQLite database,
// one JSON payload per top-level table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"ritual/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const defaultPath = "ritual.db"

// Store keeps the aggregate in the state(bucket, payload) table. Every save
// upserts all buckets in one SQL transaction.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens (creating when needed) the database at path and seeds the empty
// state when no buckets are stored yet.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, domain.IOError("open", path, fmt.Errorf("create dirs: %w", err))
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.IOError("open", path, fmt.Errorf("open sqlite: %w", err))
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, domain.IOError("open", path, fmt.Errorf("create state table: %w", err))
	}
	s := &Store{db: db, path: path}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		_ = db.Close()
		return nil, domain.IOError("open", path, fmt.Errorf("count buckets: %w", err))
	}
	if count == 0 {
		if err := s.Save(ctx, domain.NewState()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Load reads every bucket and reassembles the aggregate.
func (s *Store) Load(ctx context.Context) (domain.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.State{}, domain.IOError("load", s.path, fmt.Errorf("select state: %w", err))
	}
	defer func() { _ = rows.Close() }()
	buckets := make(map[string][]byte, len(domain.StateBuckets))
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.State{}, domain.IOError("load", s.path, fmt.Errorf("scan: %w", err))
		}
		buckets[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return domain.State{}, domain.IOError("load", s.path, fmt.Errorf("iterate state: %w", err))
	}
	state, err := domain.DecodeBuckets(buckets)
	if err != nil {
		return domain.State{}, domain.CorruptDataError("load", s.path, err)
	}
	return state, nil
}

// Save replaces every bucket with the serialized state.
func (s *Store) Save(ctx context.Context, state domain.State) (retErr error) {
	buckets, err := domain.EncodeBuckets(state)
	if err != nil {
		return domain.IOError("save", s.path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IOError("save", s.path, fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range domain.StateBuckets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, buckets[bucket]); err != nil {
			return domain.IOError("save", s.path, fmt.Errorf("upsert %s: %w", bucket, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.IOError("save", s.path, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
