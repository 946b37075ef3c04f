package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Every error returned by the aggregate and the stores wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidValue = errors.New("invalid value")
	ErrIO           = errors.New("io error")
	ErrCorruptData  = errors.New("corrupt data")
)

// NotFoundError is returned when a referenced day or habit does not exist.
// Scope names the container that was searched when it is narrower than the
// whole aggregate (a habit looked up inside one day).
type NotFoundError struct {
	Entity EntityType
	ID     uuid.UUID
	Scope  string
}

func (e NotFoundError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s %s not found in %s", e.Entity, e.ID, e.Scope)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateKeyError is returned when an insertion would overwrite an existing key.
type DuplicateKeyError struct {
	Entity EntityType
	ID     uuid.UUID
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

func (e DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// ValidationError is returned when a validated input rejects its raw value.
type ValidationError struct {
	Predicate string
	Value     any
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q: must be %s", fmt.Sprint(e.Value), e.Predicate)
}

func (e ValidationError) Unwrap() error { return ErrInvalidValue }

// StoreError wraps a durable store failure with the operation and location
// (file path, table, bucket key) it concerns. Kind is ErrIO or ErrCorruptData.
type StoreError struct {
	Kind     error
	Op       string
	Location string
	Err      error
}

func (e *StoreError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Location, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{e.Kind, e.Err} }

// IOError wraps err as an ErrIO store failure.
func IOError(op, location string, err error) error {
	return &StoreError{Kind: ErrIO, Op: op, Location: location, Err: err}
}

// CorruptDataError wraps err as an ErrCorruptData store failure.
func CorruptDataError(op, location string, err error) error {
	return &StoreError{Kind: ErrCorruptData, Op: op, Location: location, Err: err}
}

// ErrorKind returns a stable snake_case label for err's kind, or "internal"
// when err wraps none of the known kinds. Store failures win over the
// aggregate kinds they may wrap (a duplicate key inside a corrupt document is
// corrupt data).
func ErrorKind(err error) string {
	var rv RuleViolationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCorruptData):
		return "corrupt_data"
	case errors.Is(err, ErrIO):
		return "io_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	case errors.As(err, &rv):
		return "rule_violation"
	default:
		return "internal"
	}
}

func missingField(entity EntityType, field string) error {
	return fmt.Errorf("%s: missing field %q", entity, field)
}
