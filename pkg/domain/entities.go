// Package domain defines the persistent habit-tracking entities, the State
// aggregate that owns them, and the rule evaluation primitives used by ritual.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies the type of record stored in the aggregate.
type EntityType string

// Supported entity type identifiers used in Change records and errors.
const (
	// EntityDay identifies a dated container of habit refs.
	EntityDay EntityType = "day"
	// EntityHabit identifies a canonical habit record.
	EntityHabit EntityType = "habit"
	// EntityHabitRef identifies a per-day habit projection.
	EntityHabitRef EntityType = "habit_ref"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Day is a dated container of habit refs. Habits keeps insertion order.
type Day struct {
	ID     uuid.UUID `json:"id"`
	Date   time.Time `json:"date"`
	Habits HabitRefs `json:"habits"`
}

// NewDay returns an empty day with the given id and date (normalised to UTC).
func NewDay(id uuid.UUID, date time.Time) Day {
	return Day{ID: id, Date: date.UTC(), Habits: NewHabitRefs()}
}

// Clone returns a deep copy of the day.
func (d Day) Clone() Day {
	cp := d
	cp.Habits = d.Habits.Clone()
	return cp
}

// Equal compares every field, including the order of the day's habits.
func (d Day) Equal(other Day) bool {
	return d.ID == other.ID && d.Date.Equal(other.Date) && d.Habits.Equal(other.Habits)
}

// UnmarshalJSON rejects days with missing fields.
func (d *Day) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID     *uuid.UUID `json:"id"`
		Date   *time.Time `json:"date"`
		Habits *HabitRefs `json:"habits"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.ID == nil:
		return missingField(EntityDay, "id")
	case aux.Date == nil:
		return missingField(EntityDay, "date")
	case aux.Habits == nil:
		return missingField(EntityDay, "habits")
	}
	*d = Day{ID: *aux.ID, Date: *aux.Date, Habits: *aux.Habits}
	return nil
}

// Habit is the canonical record for a habit's identity and title.
type Habit struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// UnmarshalJSON rejects habits with missing fields.
func (h *Habit) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID    *uuid.UUID `json:"id"`
		Title *string    `json:"title"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.ID == nil:
		return missingField(EntityHabit, "id")
	case aux.Title == nil:
		return missingField(EntityHabit, "title")
	}
	*h = Habit{ID: *aux.ID, Title: *aux.Title}
	return nil
}

// HabitRef is a day's view of a habit. Name is a snapshot of the habit title
// taken when the ref was created; Done is scoped to the owning day.
type HabitRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Done bool      `json:"done"`
}

// Equal reports whether both refs point at the same habit. Name and Done are
// not part of a ref's identity.
func (r HabitRef) Equal(other HabitRef) bool { return r.ID == other.ID }

// UnmarshalJSON rejects refs with missing fields.
func (r *HabitRef) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID   *uuid.UUID `json:"id"`
		Name *string    `json:"name"`
		Done *bool      `json:"done"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.ID == nil:
		return missingField(EntityHabitRef, "id")
	case aux.Name == nil:
		return missingField(EntityHabitRef, "name")
	case aux.Done == nil:
		return missingField(EntityHabitRef, "done")
	}
	*r = HabitRef{ID: *aux.ID, Name: *aux.Name, Done: *aux.Done}
	return nil
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured in the transaction log. The aggregate never deletes.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID uuid.UUID
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}
