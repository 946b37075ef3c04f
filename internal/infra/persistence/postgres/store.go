// Package postgres persists the habit aggregate to a PostgreSQL table, one
// JSON payload per top-level table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"ritual/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DocumentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/ritual?sslmode=disable"
	location      = "postgres:state"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps the aggregate in the state(bucket, payload) table. Payloads are
// TEXT rather than JSONB so the stored object keeps its key order.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open connects using dsn (falls back to defaultDSN), ensures the state table
// exists, and seeds the empty state when no buckets are stored yet.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, domain.IOError("open", location, fmt.Errorf("open postgres: %w", err))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.IOError("open", location, fmt.Errorf("ping postgres: %w", err))
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	buckets, err := s.readBuckets(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(buckets) == 0 {
		if err := s.Save(ctx, domain.NewState()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return domain.IOError("open", location, fmt.Errorf("ensure state table: %w", err))
	}
	return nil
}

func (s *Store) readBuckets(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return nil, domain.IOError("load", location, fmt.Errorf("select state: %w", err))
	}
	defer func() { _ = rows.Close() }()

	buckets := make(map[string][]byte, len(domain.StateBuckets))
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, domain.IOError("load", location, fmt.Errorf("scan state: %w", err))
		}
		buckets[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOError("load", location, fmt.Errorf("iterate state: %w", err))
	}
	return buckets, nil
}

// Load reads every bucket and reassembles the aggregate.
func (s *Store) Load(ctx context.Context) (domain.State, error) {
	buckets, err := s.readBuckets(ctx)
	if err != nil {
		return domain.State{}, err
	}
	state, err := domain.DecodeBuckets(buckets)
	if err != nil {
		return domain.State{}, domain.CorruptDataError("load", location, err)
	}
	return state, nil
}

// Save upserts every bucket inside one transaction.
func (s *Store) Save(ctx context.Context, state domain.State) error {
	buckets, err := domain.EncodeBuckets(state)
	if err != nil {
		return domain.IOError("save", location, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IOError("save", location, fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range domain.StateBuckets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, string(buckets[bucket])); err != nil {
			return domain.IOError("save", location, fmt.Errorf("upsert %s: %w", bucket, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.IOError("save", location, fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
