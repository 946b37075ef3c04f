// Package blobdoc persists the habit aggregate as one JSON object in a blob
// store (filesystem, memory or S3).
package blobdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"ritual/internal/blob/core"
	"ritual/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

// DefaultKey is the object key used when none is configured.
const DefaultKey = "ritual/state.json"

const contentType = "application/json"

// Store keeps the whole document under a single blob key. Save overwrites
// the object in one Put.
type Store struct {
	blobs core.Store
	key   string
}

// Open returns a store for key inside blobs, writing the empty document when
// the key does not exist yet. An existing object is not read here.
func Open(ctx context.Context, blobs core.Store, key string) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{blobs: blobs, key: key}
	_, err := blobs.Head(ctx, key)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, core.ErrNotFound):
		if err := s.put(ctx, domain.NewState(), false); err != nil && !errors.Is(err, core.ErrExists) {
			return nil, domain.IOError("create", s.Location(), err)
		}
		return s, nil
	default:
		return nil, domain.IOError("open", s.Location(), err)
	}
}

// Location names the object as driver:key.
func (s *Store) Location() string {
	return fmt.Sprintf("%s:%s", s.blobs.Driver(), s.key)
}

// Key returns the object key.
func (s *Store) Key() string { return s.key }

// Load fetches and decodes the document.
func (s *Store) Load(ctx context.Context) (domain.State, error) {
	_, rc, err := s.blobs.Get(ctx, s.key)
	if err != nil {
		return domain.State{}, domain.IOError("load", s.Location(), err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.State{}, domain.IOError("load", s.Location(), err)
	}
	state, err := domain.DecodeState(data)
	if err != nil {
		return domain.State{}, domain.CorruptDataError("load", s.Location(), err)
	}
	return state, nil
}

// Save replaces the stored document with state.
func (s *Store) Save(ctx context.Context, state domain.State) error {
	if err := s.put(ctx, state, true); err != nil {
		return domain.IOError("save", s.Location(), err)
	}
	return nil
}

// Close is a no-op; the blob store owns no per-document resources.
func (s *Store) Close() error { return nil }

func (s *Store) put(ctx context.Context, state domain.State, overwrite bool) error {
	data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}
	_, err = s.blobs.Put(ctx, s.key, bytes.NewReader(data), core.PutOptions{
		ContentType: contentType,
		Overwrite:   overwrite,
		Metadata: map[string]string{
			"days":   strconv.Itoa(len(state.Days)),
			"habits": strconv.Itoa(len(state.Habits)),
		},
	})
	return err
}
