package domain

import (
	"testing"
	"time"
)

// mustNoError simplifies tests that expect helper methods to succeed.
func mustNoError(t *testing.T, label string, err error) {
	t.Helper()
	if err != nil {
		if label == "" {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Fatalf("%s: %v", label, err)
	}
}

// sampleState builds a two-day aggregate with one done and one pending habit.
func sampleState(t *testing.T) State {
	t.Helper()
	state := NewState()
	first, err := state.AddDay(time.Date(2024, 2, 1, 7, 0, 0, 0, time.UTC))
	mustNoError(t, "add first day", err)
	second, err := state.AddDay(time.Date(2024, 2, 2, 7, 0, 0, 0, time.UTC))
	mustNoError(t, "add second day", err)
	read, err := state.AddHabitToDay(mustTitle(t, "Read"), first.ID)
	mustNoError(t, "add read", err)
	_, err = state.AddHabitToDay(mustTitle(t, "Walk"), first.ID)
	mustNoError(t, "add walk", err)
	_, err = state.AddHabitToDay(mustTitle(t, "Stretch"), second.ID)
	mustNoError(t, "add stretch", err)
	_, err = state.SetHabitDone(first.ID, read.ID, true)
	mustNoError(t, "set read done", err)
	return state
}
