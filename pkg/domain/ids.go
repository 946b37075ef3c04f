package domain

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// NewID returns a random (version 4) identifier.
func NewID() uuid.UUID { return uuid.New() }

// IDGenerator allocates entity identifiers.
type IDGenerator interface {
	NewID() uuid.UUID
}

// RandomIDs draws identifiers from crypto/rand via uuid.New.
type RandomIDs struct{}

// NewID implements IDGenerator.
func (RandomIDs) NewID() uuid.UUID { return uuid.New() }

// IDFunc adapts a plain function to IDGenerator.
type IDFunc func() uuid.UUID

// NewID implements IDGenerator.
func (f IDFunc) NewID() uuid.UUID { return f() }

// SeededIDs produces a deterministic sequence of version 4 identifiers from a
// ChaCha8 stream. Safe for concurrent use.
type SeededIDs struct {
	mu  sync.Mutex
	src *rand.ChaCha8
}

// NewSeededIDs returns a generator whose sequence depends only on seed.
func NewSeededIDs(seed uint64) *SeededIDs {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	return &SeededIDs{src: rand.NewChaCha8(key)}
}

// NewID implements IDGenerator.
func (g *SeededIDs) NewID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8.Read never fails.
		panic(err)
	}
	return id
}
