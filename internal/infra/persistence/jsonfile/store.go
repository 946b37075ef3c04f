// Package jsonfile persists the habit aggregate as a single JSON document on
// the local filesystem.
package jsonfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ritual/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

// Logger is the structured logger used for load and save events.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option customises a Store.
type Option func(*Store)

// WithLogger routes store events to logger.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWatchDebounce sets how long Watch waits for further events before
// notifying. Defaults to 100ms.
func WithWatchDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// Store reads and writes one JSON document at a fixed path. Saves replace
// the document atomically.
type Store struct {
	path     string
	logger   Logger
	debounce time.Duration
	mu       sync.Mutex
}

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// OpenOrCreate returns a store for path. When the file does not exist its
// parent directories are created and the empty document is written. An
// existing file is not read or validated here.
func OpenOrCreate(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, logger: noopLogger{}, debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		s.logger.Debug("opened existing state document", "path", path)
		return s, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, domain.IOError("open", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, domain.IOError("open", path, err)
	}
	data, err := domain.EncodeState(domain.NewState())
	if err != nil {
		return nil, domain.IOError("open", path, err)
	}
	if err := writeAtomic(path, data); err != nil {
		return nil, domain.IOError("open", path, err)
	}
	s.logger.Info("created empty state document", "path", path)
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Load reads and decodes the whole document.
func (s *Store) Load(_ context.Context) (domain.State, error) {
	start := time.Now()
	s.logger.Debug("loading state", "path", s.path)
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Error("load failed", "path", s.path, "error", err)
		return domain.State{}, domain.IOError("load", s.path, err)
	}
	state, err := domain.DecodeState(data)
	if err != nil {
		s.logger.Error("state document is corrupt", "path", s.path, "error", err)
		return domain.State{}, domain.CorruptDataError("load", s.path, err)
	}
	s.logger.Debug("loaded state", "path", s.path, "days", len(state.Days), "habits", len(state.Habits), "duration", time.Since(start))
	return state, nil
}

// Save serializes state and replaces the document. A crash mid-write leaves
// the previous document in place.
func (s *Store) Save(_ context.Context, state domain.State) error {
	start := time.Now()
	s.logger.Debug("saving state", "path", s.path, "days", len(state.Days), "habits", len(state.Habits))
	data, err := domain.EncodeState(state)
	if err != nil {
		return domain.IOError("save", s.path, err)
	}
	s.mu.Lock()
	err = writeAtomic(s.path, data)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("save failed", "path", s.path, "error", err)
		return domain.IOError("save", s.path, err)
	}
	s.logger.Debug("saved state", "path", s.path, "bytes", len(data), "duration", time.Since(start))
	return nil
}

// Close releases nothing; the document is not held open between calls.
func (s *Store) Close() error { return nil }

// writeAtomic streams data to a temp file beside path, fsyncs it, and
// renames it over path.
func writeAtomic(path string, data []byte) (retErr error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
