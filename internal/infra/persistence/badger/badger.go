// Package badger persists the habit aggregate in an embedded BadgerDB
// key-value store, one JSON value per day and per habit.
//
// Key layout:
//
//	day/<uuid>   -> Day (habits kept in insertion order)
//	habit/<uuid> -> Habit
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"ritual/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

const (
	dayPrefix   = "day/"
	habitPrefix = "habit/"
)

// Config holds configuration for the BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable ratio that triggers GC.
	GCDiscardRatio float64
}

// DefaultConfig returns durable defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store is a domain.DocumentStore over BadgerDB. An empty database is an
// empty state.
type Store struct {
	db       *badger.DB
	location string
	stopGC   chan struct{}
	gcDone   chan struct{}
	logger   *slog.Logger
}

// Open opens the database described by cfg and starts value log GC when
// configured.
func Open(cfg Config) (*Store, error) {
	location := "badger:" + cfg.Path
	var opts badger.Options
	if cfg.InMemory {
		location = "badger:memory"
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, domain.IOError("open", location, errors.New("path is required for persistent database"))
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, domain.IOError("open", location, fmt.Errorf("create database directory: %w", err))
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.IOError("open", location, fmt.Errorf("open badger database: %w", err))
	}
	s := &Store{db: db, location: location, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// Load scans both key prefixes and rebuilds the aggregate.
func (s *Store) Load(_ context.Context) (domain.State, error) {
	state := domain.NewState()
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scan(txn, dayPrefix, func(id uuid.UUID, val []byte) error {
			var day domain.Day
			if err := json.Unmarshal(val, &day); err != nil {
				return corrupt{err}
			}
			state.Days[id] = day
			return nil
		}); err != nil {
			return err
		}
		return scan(txn, habitPrefix, func(id uuid.UUID, val []byte) error {
			var habit domain.Habit
			if err := json.Unmarshal(val, &habit); err != nil {
				return corrupt{err}
			}
			state.Habits[id] = habit
			return nil
		})
	})
	var c corrupt
	switch {
	case errors.As(err, &c):
		return domain.State{}, domain.CorruptDataError("load", s.location, c.err)
	case err != nil:
		return domain.State{}, domain.IOError("load", s.location, err)
	}
	return state, nil
}

type corrupt struct{ err error }

func (c corrupt) Error() string { return c.err.Error() }

func scan(txn *badger.Txn, prefix string, fn func(uuid.UUID, []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := string(item.Key())
		id, err := uuid.Parse(strings.TrimPrefix(key, prefix))
		if err != nil {
			return corrupt{fmt.Errorf("key %q: %w", key, err)}
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(id, val); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces every day and habit key inside one badger transaction.
func (s *Store) Save(_ context.Context, state domain.State) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range []string{dayPrefix, habitPrefix} {
			if err := deletePrefix(txn, prefix); err != nil {
				return err
			}
		}
		for id, day := range state.Days {
			val, err := json.Marshal(day)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(dayPrefix+id.String()), val); err != nil {
				return err
			}
		}
		for id, habit := range state.Habits {
			val, err := json.Marshal(habit)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(habitPrefix+id.String()), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.IOError("save", s.location, err)
	}
	return nil
}

func deletePrefix(txn *badger.Txn, prefix string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
		s.stopGC = nil
	}
	return s.db.Close()
}

// DB exposes the underlying database for tests.
func (s *Store) DB() *badger.DB { return s.db }
