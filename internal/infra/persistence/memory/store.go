// Package memory provides the in-memory transactional owner of the habit
// aggregate. Durable backends load into it at startup and save snapshots out
// of it.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ritual/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Day aliases domain.Day for in-memory persistence operations.
	Day = domain.Day
	// Habit aliases domain.Habit.
	Habit = domain.Habit
	// HabitRef aliases domain.HabitRef.
	HabitRef = domain.HabitRef
	// State aliases domain.State, the unit cloned per transaction.
	State = domain.State
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator replaces the random id source, e.g. with domain.NewSeededIDs.
func WithIDGenerator(gen domain.IDGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.ids = gen
		}
	}
}

// WithClock replaces the clock used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store is an in-memory implementation of domain.PersistentStore. Each
// transaction mutates a deep copy that replaces the live state only when no
// rule blocks.
type Store struct {
	mu     sync.RWMutex
	state  State
	engine *RulesEngine
	ids    domain.IDGenerator
	nowFn  func() time.Time
}

// NewStore constructs an empty store evaluating engine on every commit.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  domain.NewState(),
		engine: engine,
		ids:    domain.RandomIDs{},
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState returns a deep copy of the live state.
func (s *Store) ExportState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ImportState replaces the live state with a deep copy of state.
func (s *Store) ImportState(state State) {
	cp := state.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = cp
}

// RulesEngine exposes the engine evaluated on commit.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// NowFunc exposes the store clock.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   State
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only view of a state to rules and readers.
type transactionView struct {
	state *State
}

func newTransactionView(state *State) TransactionView {
	return transactionView{state: state}
}

// ListDays returns all days, oldest first.
func (v transactionView) ListDays() []Day {
	return v.state.DaysByDate()
}

// ListHabits returns all habits sorted by title.
func (v transactionView) ListHabits() []Habit {
	return v.state.ListHabits()
}

// FindDay retrieves a day by ID from the snapshot.
func (v transactionView) FindDay(id uuid.UUID) (Day, bool) {
	return v.state.FindDay(id)
}

// FindHabit retrieves a habit by ID from the snapshot.
func (v transactionView) FindHabit(id uuid.UUID) (Habit, bool) {
	return v.state.FindHabit(id)
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The returned Result carries every non-blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.Clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.Clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a view of the uncommitted transaction state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now returns the timestamp captured when the transaction began.
func (tx *transaction) Now() time.Time {
	return tx.now
}

func (tx *transaction) FindDay(id uuid.UUID) (Day, bool) {
	return tx.state.FindDay(id)
}

func (tx *transaction) FindHabit(id uuid.UUID) (Habit, bool) {
	return tx.state.FindHabit(id)
}

// AddDay creates a day with an id from the store's generator.
func (tx *transaction) AddDay(date time.Time) (Day, error) {
	day, err := tx.state.InsertDay(domain.NewDay(tx.store.ids.NewID(), date))
	if err != nil {
		return Day{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityDay, Action: domain.ActionCreate, After: day.Clone()})
	return day, nil
}

// AddHabitToDay creates a habit and its ref in the given day.
func (tx *transaction) AddHabitToDay(title domain.NonEmptyString, dayID uuid.UUID) (Habit, error) {
	before, ok := tx.state.FindDay(dayID)
	if !ok {
		return Habit{}, domain.NotFoundError{Entity: domain.EntityDay, ID: dayID}
	}
	habit, err := tx.state.InsertHabit(dayID, tx.store.ids.NewID(), title)
	if err != nil {
		return Habit{}, err
	}
	after, _ := tx.state.FindDay(dayID)
	tx.recordChange(Change{Entity: domain.EntityHabit, Action: domain.ActionCreate, After: habit})
	tx.recordChange(Change{Entity: domain.EntityDay, Action: domain.ActionUpdate, Before: before, After: after})
	return habit, nil
}

// SetHabitDone flips the done flag of a habit ref within one day.
func (tx *transaction) SetHabitDone(dayID, habitID uuid.UUID, done bool) (HabitRef, error) {
	var before HabitRef
	if day, ok := tx.state.FindDay(dayID); ok {
		before, _ = day.Habits.Get(habitID)
	}
	ref, err := tx.state.SetHabitDone(dayID, habitID, done)
	if err != nil {
		return HabitRef{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityHabitRef, Action: domain.ActionUpdate, Before: before, After: ref})
	return ref, nil
}
