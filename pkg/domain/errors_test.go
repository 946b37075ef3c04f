package domain

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestErrorKind(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NotFoundError{Entity: EntityDay, ID: id}, "not_found"},
		{fmt.Errorf("wrapped: %w", DuplicateKeyError{Entity: EntityHabit, ID: id}), "duplicate_key"},
		{ValidationError{Predicate: "non-empty", Value: ""}, "invalid_value"},
		{IOError("save", "/tmp/x", os.ErrPermission), "io_error"},
		{CorruptDataError("load", "/tmp/x", DuplicateKeyError{Entity: EntityHabitRef, ID: id}), "corrupt_data"},
		{RuleViolationError{}, "rule_violation"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestStoreErrorUnwrapsKindAndCause(t *testing.T) {
	err := IOError("save", "/data/db.json", os.ErrPermission)
	if !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrPermission) {
		t.Fatalf("expected both kind and cause, got %v", err)
	}
	if errors.Is(err, ErrCorruptData) {
		t.Fatalf("io error must not be corrupt data")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Location != "/data/db.json" || se.Op != "save" {
		t.Fatalf("unexpected store error %+v", se)
	}
	if !strings.Contains(err.Error(), "/data/db.json") {
		t.Fatalf("message should carry the location: %v", err)
	}
}

func TestNotFoundErrorScope(t *testing.T) {
	day, habit := uuid.New(), uuid.New()
	err := NotFoundError{Entity: EntityHabitRef, ID: habit, Scope: "day " + day.String()}
	want := fmt.Sprintf("habit_ref %s not found in day %s", habit, day)
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
