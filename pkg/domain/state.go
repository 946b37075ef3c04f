package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// State is the root aggregate and the only persisted unit. Mutations go
// through its methods, which never overwrite an existing key and never leave
// a HabitRef without its Habit.
type State struct {
	Days   map[uuid.UUID]Day   `json:"days"`
	Habits map[uuid.UUID]Habit `json:"habits"`
}

// NewState returns an empty aggregate.
func NewState() State {
	return State{Days: map[uuid.UUID]Day{}, Habits: map[uuid.UUID]Habit{}}
}

func (s *State) init() {
	if s.Days == nil {
		s.Days = map[uuid.UUID]Day{}
	}
	if s.Habits == nil {
		s.Habits = map[uuid.UUID]Habit{}
	}
}

// AddDay creates a day with a fresh id and the given date.
func (s *State) AddDay(date time.Time) (Day, error) {
	return s.InsertDay(NewDay(NewID(), date))
}

// InsertDay adds a pre-built day. Fails with DuplicateKeyError if the id is taken.
func (s *State) InsertDay(day Day) (Day, error) {
	s.init()
	if _, exists := s.Days[day.ID]; exists {
		return Day{}, DuplicateKeyError{Entity: EntityDay, ID: day.ID}
	}
	day.Date = day.Date.UTC()
	day = day.Clone()
	s.Days[day.ID] = day
	return day.Clone(), nil
}

// AddHabitToDay creates a habit with a fresh id and attaches a matching,
// not-done ref to the day.
func (s *State) AddHabitToDay(title NonEmptyString, dayID uuid.UUID) (Habit, error) {
	return s.InsertHabit(dayID, NewID(), title)
}

// InsertHabit creates the habit habitID and its ref in day dayID. Both target
// keys are checked before either map is touched, so a failure leaves the
// aggregate unchanged.
func (s *State) InsertHabit(dayID, habitID uuid.UUID, title NonEmptyString) (Habit, error) {
	if title.IsZero() {
		return Habit{}, ValidationError{Predicate: NonEmpty{}.Describe(), Value: ""}
	}
	s.init()
	day, ok := s.Days[dayID]
	if !ok {
		return Habit{}, NotFoundError{Entity: EntityDay, ID: dayID}
	}
	if day.Habits.Has(habitID) {
		return Habit{}, DuplicateKeyError{Entity: EntityHabitRef, ID: habitID}
	}
	if _, exists := s.Habits[habitID]; exists {
		return Habit{}, DuplicateKeyError{Entity: EntityHabit, ID: habitID}
	}

	habit := Habit{ID: habitID, Title: title.Inner()}
	habits := day.Habits.Clone()
	if err := habits.Insert(HabitRef{ID: habitID, Name: habit.Title}); err != nil {
		return Habit{}, err
	}
	day.Habits = habits
	s.Days[dayID] = day
	s.Habits[habitID] = habit
	return habit, nil
}

// SetHabitDone overwrites the done flag of the habit ref habitID inside day
// dayID. The lookup is scoped to that day; the global Habit is untouched.
func (s *State) SetHabitDone(dayID, habitID uuid.UUID, done bool) (HabitRef, error) {
	day, ok := s.Days[dayID]
	if !ok {
		return HabitRef{}, NotFoundError{Entity: EntityDay, ID: dayID}
	}
	ref, ok := day.Habits.Get(habitID)
	if !ok {
		return HabitRef{}, NotFoundError{Entity: EntityHabitRef, ID: habitID, Scope: fmt.Sprintf("day %s", dayID)}
	}
	ref.Done = done
	habits := day.Habits.Clone()
	habits.replace(ref)
	day.Habits = habits
	s.Days[dayID] = day
	return ref, nil
}

// FindDay returns a copy of the day keyed by id.
func (s State) FindDay(id uuid.UUID) (Day, bool) {
	day, ok := s.Days[id]
	if !ok {
		return Day{}, false
	}
	return day.Clone(), true
}

// FindHabit returns the habit keyed by id.
func (s State) FindHabit(id uuid.UUID) (Habit, bool) {
	habit, ok := s.Habits[id]
	return habit, ok
}

// DaysByDate returns copies of all days, oldest first. Ties sort by id so the
// order is stable across loads.
func (s State) DaysByDate() []Day {
	out := make([]Day, 0, len(s.Days))
	for _, day := range s.Days {
		out = append(out, day.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// ListHabits returns all habits sorted by title, then id.
func (s State) ListHabits() []Habit {
	out := make([]Habit, 0, len(s.Habits))
	for _, habit := range s.Habits {
		out = append(out, habit)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Clone returns a deep copy.
func (s State) Clone() State {
	cp := State{
		Days:   make(map[uuid.UUID]Day, len(s.Days)),
		Habits: make(map[uuid.UUID]Habit, len(s.Habits)),
	}
	for k, v := range s.Days {
		cp.Days[k] = v.Clone()
	}
	for k, v := range s.Habits {
		cp.Habits[k] = v
	}
	return cp
}

// Equal compares both aggregates field by field, including per-day habit order.
func (s State) Equal(other State) bool {
	if len(s.Days) != len(other.Days) || len(s.Habits) != len(other.Habits) {
		return false
	}
	for id, day := range s.Days {
		od, ok := other.Days[id]
		if !ok || !day.Equal(od) {
			return false
		}
	}
	for id, habit := range s.Habits {
		if oh, ok := other.Habits[id]; !ok || oh != habit {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants of a loaded aggregate: map keys
// match ids, titles are non-empty, and every ref resolves to a habit.
func (s State) Validate() []Violation {
	var out []Violation
	add := func(entity EntityType, id uuid.UUID, format string, args ...any) {
		out = append(out, Violation{
			Rule:     "state_integrity",
			Severity: SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   entity,
			EntityID: id,
		})
	}
	for key, habit := range s.Habits {
		if habit.ID != key {
			add(EntityHabit, key, "habit keyed %s carries id %s", key, habit.ID)
		}
		if habit.Title == "" {
			add(EntityHabit, key, "habit %s has an empty title", key)
		}
	}
	for key, day := range s.Days {
		if day.ID != key {
			add(EntityDay, key, "day keyed %s carries id %s", key, day.ID)
		}
		for refKey, ref := range day.Habits.All() {
			if ref.ID != refKey {
				add(EntityHabitRef, refKey, "habit ref keyed %s in day %s carries id %s", refKey, key, ref.ID)
			}
			if _, ok := s.Habits[refKey]; !ok {
				add(EntityHabitRef, refKey, "day %s references missing habit %s", key, refKey)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntityID.String() < out[j].EntityID.String() })
	return out
}

// MarshalJSON always writes both top-level objects, even for a zero State.
func (s State) MarshalJSON() ([]byte, error) {
	type document struct {
		Days   map[uuid.UUID]Day   `json:"days"`
		Habits map[uuid.UUID]Habit `json:"habits"`
	}
	doc := document{Days: s.Days, Habits: s.Habits}
	if doc.Days == nil {
		doc.Days = map[uuid.UUID]Day{}
	}
	if doc.Habits == nil {
		doc.Habits = map[uuid.UUID]Habit{}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON rejects documents missing either top-level object.
func (s *State) UnmarshalJSON(data []byte) error {
	var aux struct {
		Days   *map[uuid.UUID]Day   `json:"days"`
		Habits *map[uuid.UUID]Habit `json:"habits"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.Days == nil || *aux.Days == nil:
		return fmt.Errorf("state: missing field %q", "days")
	case aux.Habits == nil || *aux.Habits == nil:
		return fmt.Errorf("state: missing field %q", "habits")
	}
	*s = State{Days: *aux.Days, Habits: *aux.Habits}
	return nil
}

// EncodeState serializes the aggregate as one JSON document.
func EncodeState(state State) ([]byte, error) {
	return json.Marshal(state)
}

// DecodeState parses one JSON document. Every failure (malformed or truncated
// JSON, missing fields, type mismatches, bad UUID keys) is returned as-is for
// the caller to classify; stores wrap it with CorruptDataError.
func DecodeState(data []byte) (State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}
