package domain

// Predicate is a constraint checked once when a Validated value is built.
type Predicate[T any] interface {
	Check(T) bool
	Describe() string
}

// Validated wraps a raw value that satisfied P at construction time. Holding
// one is proof the constraint held; Inner never re-checks.
type Validated[T any, P Predicate[T]] struct {
	value T
	valid bool
}

// NewValidated checks raw against P and wraps it, or returns a
// ValidationError (ErrInvalidValue).
func NewValidated[T any, P Predicate[T]](raw T) (Validated[T, P], error) {
	var p P
	if !p.Check(raw) {
		return Validated[T, P]{}, ValidationError{Predicate: p.Describe(), Value: raw}
	}
	return Validated[T, P]{value: raw, valid: true}, nil
}

// Inner returns the wrapped raw value.
func (v Validated[T, P]) Inner() T { return v.value }

// IsZero reports whether v was declared without going through NewValidated.
func (v Validated[T, P]) IsZero() bool { return !v.valid }

// NonEmpty accepts any string except "". Whitespace-only strings pass.
type NonEmpty struct{}

func (NonEmpty) Check(s string) bool { return s != "" }
func (NonEmpty) Describe() string    { return "non-empty" }

// Unsigned lists the integer types NonZero can constrain.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// NonZero accepts any value except 0.
type NonZero[T Unsigned] struct{}

func (NonZero[T]) Check(v T) bool   { return v != 0 }
func (NonZero[T]) Describe() string { return "non-zero" }

type (
	// NonEmptyString is a string proven non-empty.
	NonEmptyString = Validated[string, NonEmpty]
	// NonZeroUint32 is a uint32 proven non-zero.
	NonZeroUint32 = Validated[uint32, NonZero[uint32]]
)

// NewNonEmptyString validates s.
func NewNonEmptyString(s string) (NonEmptyString, error) {
	return NewValidated[string, NonEmpty](s)
}

// NewNonZeroUint32 validates n.
func NewNonZeroUint32(n uint32) (NonZeroUint32, error) {
	return NewValidated[uint32, NonZero[uint32]](n)
}
