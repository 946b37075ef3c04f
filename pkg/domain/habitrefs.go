package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/google/uuid"
)

// HabitRefs is a day's habit refs keyed by habit id, iterated in insertion
// order. The order is part of the persisted document and drives display.
// The zero value is an empty collection ready for use.
type HabitRefs struct {
	order []uuid.UUID
	refs  map[uuid.UUID]HabitRef
}

// NewHabitRefs returns an empty collection.
func NewHabitRefs() HabitRefs {
	return HabitRefs{refs: map[uuid.UUID]HabitRef{}}
}

// Len returns the number of refs.
func (h HabitRefs) Len() int { return len(h.order) }

// Get returns the ref keyed by id.
func (h HabitRefs) Get(id uuid.UUID) (HabitRef, bool) {
	ref, ok := h.refs[id]
	return ref, ok
}

// Has reports whether id is present.
func (h HabitRefs) Has(id uuid.UUID) bool {
	_, ok := h.refs[id]
	return ok
}

// Insert appends ref under ref.ID. An existing key is never overwritten.
func (h *HabitRefs) Insert(ref HabitRef) error {
	return h.insert(ref.ID, ref)
}

func (h *HabitRefs) insert(key uuid.UUID, ref HabitRef) error {
	if h.Has(key) {
		return DuplicateKeyError{Entity: EntityHabitRef, ID: key}
	}
	if h.refs == nil {
		h.refs = map[uuid.UUID]HabitRef{}
	}
	h.order = append(h.order, key)
	h.refs[key] = ref
	return nil
}

// replace overwrites an existing ref in place, keeping its position.
func (h *HabitRefs) replace(ref HabitRef) bool {
	if !h.Has(ref.ID) {
		return false
	}
	h.refs[ref.ID] = ref
	return true
}

// Keys returns the ids in insertion order.
func (h HabitRefs) Keys() []uuid.UUID {
	return append([]uuid.UUID(nil), h.order...)
}

// Values returns the refs in insertion order.
func (h HabitRefs) Values() []HabitRef {
	out := make([]HabitRef, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.refs[id])
	}
	return out
}

// All iterates id/ref pairs in insertion order.
func (h HabitRefs) All() iter.Seq2[uuid.UUID, HabitRef] {
	return func(yield func(uuid.UUID, HabitRef) bool) {
		for _, id := range h.order {
			if !yield(id, h.refs[id]) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (h HabitRefs) Clone() HabitRefs {
	cp := HabitRefs{
		order: make([]uuid.UUID, len(h.order)),
		refs:  make(map[uuid.UUID]HabitRef, len(h.refs)),
	}
	copy(cp.order, h.order)
	for k, v := range h.refs {
		cp.refs[k] = v
	}
	return cp
}

// Equal compares order and every field of every ref. Use HabitRef.Equal for
// identity comparison of single refs.
func (h HabitRefs) Equal(other HabitRefs) bool {
	if len(h.order) != len(other.order) {
		return false
	}
	for i, id := range h.order {
		if other.order[i] != id || h.refs[id] != other.refs[id] {
			return false
		}
	}
	return true
}

// MarshalJSON writes a JSON object whose keys follow insertion order.
func (h HabitRefs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range h.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id.String())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(h.refs[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the document's key order.
// Duplicate or non-UUID keys are rejected.
func (h *HabitRefs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("habits: expected object, got %v", tok)
	}
	out := NewHabitRefs()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("habits: expected key, got %v", tok)
		}
		id, err := uuid.Parse(key)
		if err != nil {
			return fmt.Errorf("habits: key %q: %w", key, err)
		}
		var ref HabitRef
		if err := dec.Decode(&ref); err != nil {
			return fmt.Errorf("habits[%s]: %w", key, err)
		}
		if err := out.insert(id, ref); err != nil {
			return fmt.Errorf("habits: %w", err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*h = out
	return nil
}
