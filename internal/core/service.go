package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ritual/internal/infra/persistence/memory"
	"ritual/pkg/domain"
)

// Service exposes the aggregate's mutations as transactional operations,
// reporting each one to the configured audit, metrics and tracing hooks.
type Service struct {
	store   domain.PersistentStore
	logger  Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	cfg := applyOptions(opts)
	return &Service{
		store:   store,
		logger:  cfg.logger,
		clock:   cfg.clock,
		audit:   cfg.audit,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine gets the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	cfg := applyOptions(opts)
	return NewService(newMemoryStore(engine, cfg), opts...)
}

func newMemoryStore(engine *RulesEngine, cfg serviceOptions) *memory.Store {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	storeOpts := []memory.Option{memory.WithClock(cfg.clock.Now)}
	if cfg.ids != nil {
		storeOpts = append(storeOpts, memory.WithIDGenerator(cfg.ids))
	}
	return memory.NewStore(engine, storeOpts...)
}

// Store returns the underlying transactional store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now() }

// AddDay creates a day. A zero date means now.
func (s *Service) AddDay(ctx context.Context, date time.Time) (domain.Day, Result, error) {
	if date.IsZero() {
		date = s.clock.Now()
	}
	var created domain.Day
	res, err := s.run(ctx, OpAddDay, func(tx domain.Transaction) (uuid.UUID, error) {
		var err error
		created, err = tx.AddDay(date)
		return created.ID, err
	})
	return created, res, err
}

// AddHabitToDay creates a habit and its not-done ref in the given day.
func (s *Service) AddHabitToDay(ctx context.Context, title domain.NonEmptyString, dayID uuid.UUID) (domain.Habit, Result, error) {
	var created domain.Habit
	res, err := s.run(ctx, OpAddHabitToDay, func(tx domain.Transaction) (uuid.UUID, error) {
		var err error
		created, err = tx.AddHabitToDay(title, dayID)
		return created.ID, err
	})
	return created, res, err
}

// SetHabitDone sets the done flag of one habit within one day.
func (s *Service) SetHabitDone(ctx context.Context, dayID, habitID uuid.UUID, done bool) (domain.HabitRef, Result, error) {
	var updated domain.HabitRef
	res, err := s.run(ctx, OpSetHabitDone, func(tx domain.Transaction) (uuid.UUID, error) {
		var err error
		updated, err = tx.SetHabitDone(dayID, habitID, done)
		return habitID, err
	})
	return updated, res, err
}

// Snapshot returns a deep copy of the committed state.
func (s *Service) Snapshot() domain.State { return s.store.ExportState() }

// Replace swaps the committed state for a copy of state.
func (s *Service) Replace(state domain.State) { s.store.ImportState(state) }

// View runs fn against a read-only snapshot.
func (s *Service) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	return s.store.View(ctx, fn)
}

func (s *Service) run(ctx context.Context, op string, fn func(domain.Transaction) (uuid.UUID, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	var entityID uuid.UUID
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		entityID, err = fn(tx)
		return err
	})
	duration := time.Since(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	span.End(err)

	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "entity_id", v.EntityID, "message", v.Message)
		}
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "kind", domain.ErrorKind(err), "error", err)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return res, err
	}
	s.logger.Debug("operation committed", "operation", op, "entity_id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return res, nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op string, entityID uuid.UUID, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op string, entityID uuid.UUID, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op string, entityID uuid.UUID, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
