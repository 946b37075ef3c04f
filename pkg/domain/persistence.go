package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transaction exposes the aggregate operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	AddDay(date time.Time) (Day, error)
	AddHabitToDay(title NonEmptyString, dayID uuid.UUID) (Habit, error)
	SetHabitDone(dayID, habitID uuid.UUID, done bool) (HabitRef, error)
	FindDay(id uuid.UUID) (Day, bool)
	FindHabit(id uuid.UUID) (Habit, bool)
}

// TransactionView provides read-only access to snapshot data for rules and readers.
type TransactionView interface {
	ListDays() []Day
	ListHabits() []Habit
	FindDay(id uuid.UUID) (Day, bool)
	FindHabit(id uuid.UUID) (Habit, bool)
}

// PersistentStore is the transactional owner of the live aggregate.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() State
	ImportState(State)
}

// DocumentStore persists the whole aggregate as a single document. Save
// replaces whatever was stored before; there are no incremental updates.
type DocumentStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
	Close() error
}

// Bucket names used by backends that split the document into one payload per
// top-level table.
const (
	BucketDays   = "days"
	BucketHabits = "habits"
)

// StateBuckets lists the buckets in document order.
var StateBuckets = []string{BucketDays, BucketHabits}

// EncodeBuckets serializes each top-level table of state separately.
func EncodeBuckets(state State) (map[string][]byte, error) {
	days := state.Days
	if days == nil {
		days = map[uuid.UUID]Day{}
	}
	habits := state.Habits
	if habits == nil {
		habits = map[uuid.UUID]Habit{}
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketDays, err)
	}
	habitsJSON, err := json.Marshal(habits)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketHabits, err)
	}
	return map[string][]byte{BucketDays: daysJSON, BucketHabits: habitsJSON}, nil
}

// DecodeBuckets reassembles a state from per-table payloads. A missing bucket
// is reported the same way as a missing top-level field.
func DecodeBuckets(buckets map[string][]byte) (State, error) {
	var doc bytes.Buffer
	doc.WriteByte('{')
	for i, name := range StateBuckets {
		payload, ok := buckets[name]
		if !ok {
			return State{}, fmt.Errorf("state: missing field %q", name)
		}
		if i > 0 {
			doc.WriteByte(',')
		}
		fmt.Fprintf(&doc, "%q:", name)
		doc.Write(payload)
	}
	doc.WriteByte('}')
	return DecodeState(doc.Bytes())
}
