package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ritual/internal/blob"
	"ritual/internal/config"
	"ritual/internal/infra/persistence/badger"
	"ritual/internal/infra/persistence/blobdoc"
	"ritual/internal/infra/persistence/jsonfile"
	"ritual/internal/infra/persistence/postgres"
	"ritual/internal/infra/persistence/sqlite"
	"ritual/pkg/domain"
)

// StorageDriver identifies a concrete document backend.
type StorageDriver string

const (
	StorageFile     StorageDriver = config.DriverFile     // JSON file (default)
	StorageSQLite   StorageDriver = config.DriverSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.DriverPostgres // PostgreSQL server
	StorageBadger   StorageDriver = config.DriverBadger   // embedded key-value store
	StorageBlob     StorageDriver = config.DriverBlob     // one object in a blob store
)

// ErrWatchUnsupported is returned by Watch for backends without change
// notification.
var ErrWatchUnsupported = errors.New("backend does not support watching")

// Watcher is implemented by backends that can report external rewrites.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// OpenDocumentStore opens the backend selected by cfg.Driver. The returned
// store logs and measures every load and save.
func OpenDocumentStore(ctx context.Context, cfg config.Storage, opts ...Option) (domain.DocumentStore, error) {
	o := applyOptions(opts)
	inner, location, err := openBackend(ctx, cfg, o.logger)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("storage opened", "driver", cfg.Driver, "location", location)
	return &observedStore{
		inner:    inner,
		driver:   StorageDriver(cfg.Driver),
		location: location,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
	}, nil
}

func openBackend(ctx context.Context, cfg config.Storage, logger Logger) (domain.DocumentStore, string, error) {
	switch StorageDriver(cfg.Driver) {
	case StorageFile, "":
		s, err := jsonfile.OpenOrCreate(cfg.Path, jsonfile.WithLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return s, s.Path(), nil
	case StorageSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, "", err
		}
		return s, s.Path(), nil
	case StoragePostgres:
		s, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, "", err
		}
		return s, "postgres:state", nil
	case StorageBadger:
		bcfg := badger.DefaultConfig(cfg.Badger.Path)
		if cfg.Badger.InMemory {
			bcfg = badger.InMemoryConfig()
		}
		bcfg.SyncWrites = cfg.Badger.SyncWrites
		bcfg.GCInterval = cfg.Badger.GCInterval
		bcfg.GCDiscardRatio = cfg.Badger.GCDiscardRatio
		if sl, ok := logger.(*slog.Logger); ok {
			bcfg.Logger = sl
		}
		s, err := badger.Open(bcfg)
		if err != nil {
			return nil, "", err
		}
		location := cfg.Badger.Path
		if cfg.Badger.InMemory {
			location = "badger:memory"
		}
		return s, location, nil
	case StorageBlob:
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, "", domain.IOError("open", "blob:"+cfg.Blob.Driver, err)
		}
		s, err := blobdoc.Open(ctx, blobs, cfg.Blob.Key)
		if err != nil {
			return nil, "", err
		}
		return s, s.Location(), nil
	default:
		return nil, "", fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// Open opens the configured backend, loads the stored state into a fresh
// in-memory service and returns an engine ready to Run. A load failure is
// returned unless cfg.Storage.RecoverEmpty or the RecoverEmpty option is set,
// in which case it is logged and the engine starts from an empty state.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	o := applyOptions(opts)
	docs, err := OpenDocumentStore(ctx, cfg.Storage, opts...)
	if err != nil {
		return nil, err
	}
	state, err := docs.Load(ctx)
	if err != nil {
		recoverable := errors.Is(err, domain.ErrIO) || errors.Is(err, domain.ErrCorruptData)
		if !recoverable || !(o.recover || cfg.Storage.RecoverEmpty) {
			_ = docs.Close()
			return nil, err
		}
		o.logger.Error("load failed, starting from an empty state", "kind", domain.ErrorKind(err), "error", err)
		state = domain.NewState()
	}
	if violations := state.Validate(); len(violations) > 0 {
		for _, v := range violations {
			o.logger.Warn("stored state violates invariant", "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
		}
	}
	svc := NewInMemoryService(NewDefaultRulesEngine(), opts...)
	svc.Replace(state)
	return NewEngine(svc, docs, opts...), nil
}

// observedStore reports loads and saves of the wrapped backend to the
// logger, metrics and tracer.
type observedStore struct {
	inner    domain.DocumentStore
	driver   StorageDriver
	location string
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
}

func (s *observedStore) Load(ctx context.Context) (domain.State, error) {
	ctx, span := s.tracer.Start(ctx, OpLoad)
	start := time.Now()
	state, err := s.inner.Load(ctx)
	duration := time.Since(start)
	s.metrics.Observe(ctx, OpLoad, err == nil, duration)
	span.End(err)
	if err != nil {
		s.logger.Error("load failed", "driver", s.driver, "location", s.location, "kind", domain.ErrorKind(err), "error", err)
		return domain.State{}, err
	}
	s.logger.Info("state loaded", "driver", s.driver, "location", s.location,
		"days", len(state.Days), "habits", len(state.Habits), "duration", duration)
	return state, nil
}

func (s *observedStore) Save(ctx context.Context, state domain.State) error {
	ctx, span := s.tracer.Start(ctx, OpSave)
	start := time.Now()
	err := s.inner.Save(ctx, state)
	duration := time.Since(start)
	s.metrics.Observe(ctx, OpSave, err == nil, duration)
	span.End(err)
	if err != nil {
		s.logger.Error("save failed", "driver", s.driver, "location", s.location, "kind", domain.ErrorKind(err), "error", err)
		return err
	}
	s.logger.Info("state saved", "driver", s.driver, "location", s.location,
		"days", len(state.Days), "habits", len(state.Habits), "duration", duration)
	return nil
}

func (s *observedStore) Close() error { return s.inner.Close() }

func (s *observedStore) Watch(ctx context.Context, onChange func()) error {
	w, ok := s.inner.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, onChange)
}

// Unwrap returns the backend store.
func (s *observedStore) Unwrap() domain.DocumentStore { return s.inner }
