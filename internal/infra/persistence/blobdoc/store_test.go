package blobdoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"ritual/internal/blob"
	"ritual/internal/blob/core"
	"ritual/pkg/domain"
)

func blobStores(t *testing.T) map[string]core.Store {
	t.Helper()
	fsStore, err := blob.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return map[string]core.Store{
		"memory": blob.NewMemory(),
		"fs":     fsStore,
		"s3":     blob.NewMockS3ForTests(),
	}
}

func mustTitle(t *testing.T, s string) domain.NonEmptyString {
	t.Helper()
	title, err := domain.NewNonEmptyString(s)
	if err != nil {
		t.Fatalf("title: %v", err)
	}
	return title
}

func TestOpenSeedsEmptyDocument(t *testing.T) {
	ctx := context.Background()
	for name, blobs := range blobStores(t) {
		t.Run(name, func(t *testing.T) {
			s, err := Open(ctx, blobs, "")
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if s.Key() != DefaultKey {
				t.Fatalf("unexpected key %s", s.Key())
			}
			_, rc, err := blobs.Get(ctx, DefaultKey)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			raw, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(raw) != `{"days":{},"habits":{}}` {
				t.Fatalf("unexpected seed %s", raw)
			}
			state, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(state.Days) != 0 || len(state.Habits) != 0 {
				t.Fatalf("expected empty state")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, blobs := range blobStores(t) {
		t.Run(name, func(t *testing.T) {
			s, err := Open(ctx, blobs, "users/a/state.json")
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			state := domain.NewState()
			day, _ := state.AddDay(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
			var ids []string
			for _, title := range []string{"Write", "Bike", "Aikido"} {
				h, err := state.AddHabitToDay(mustTitle(t, title), day.ID)
				if err != nil {
					t.Fatalf("add: %v", err)
				}
				ids = append(ids, h.ID.String())
			}
			if err := s.Save(ctx, state); err != nil {
				t.Fatalf("save: %v", err)
			}
			// a second save replaces the object
			first, _ := state.FindDay(day.ID)
			if _, err := state.SetHabitDone(day.ID, first.Habits.Keys()[1], true); err != nil {
				t.Fatalf("set done: %v", err)
			}
			if err := s.Save(ctx, state); err != nil {
				t.Fatalf("second save: %v", err)
			}
			reopened, err := Open(ctx, blobs, "users/a/state.json")
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			loaded, err := reopened.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !loaded.Equal(state) {
				t.Fatalf("round trip mismatch")
			}
			got, _ := loaded.FindDay(day.ID)
			for i, id := range got.Habits.Keys() {
				if id.String() != ids[i] {
					t.Fatalf("order lost at %d", i)
				}
			}
			info, err := blobs.Head(ctx, "users/a/state.json")
			if err != nil {
				t.Fatalf("head: %v", err)
			}
			if info.Metadata["habits"] != "3" {
				t.Fatalf("unexpected metadata %+v", info.Metadata)
			}
		})
	}
}

func TestLoadCorruptObject(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	if _, err := blobs.Put(ctx, DefaultKey, strings.NewReader(`{"days":{}`), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	s, err := Open(ctx, blobs, DefaultKey)
	if err != nil {
		t.Fatalf("open must not validate: %v", err)
	}
	_, err = s.Load(ctx)
	if !errors.Is(err, domain.ErrCorruptData) {
		t.Fatalf("expected corrupt data, got %v", err)
	}
	var se *domain.StoreError
	if !errors.As(err, &se) || se.Location != "memory:"+DefaultKey {
		t.Fatalf("unexpected location in %v", err)
	}
}

func TestLoadMissingObjectIsIOError(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, vanishingBlobs{blob.NewMemory()}, DefaultKey)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = s.Load(ctx)
	if !errors.Is(err, domain.ErrIO) || !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected io error wrapping not found, got %v", err)
	}
}

// vanishingBlobs loses every object between Put and Get.
type vanishingBlobs struct{ core.Store }

func (vanishingBlobs) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
}

type failingBlobs struct{ core.Store }

func (failingBlobs) Head(context.Context, string) (core.Info, error) {
	return core.Info{}, errors.New("connection refused")
}

func (failingBlobs) Put(context.Context, string, io.Reader, core.PutOptions) (core.Info, error) {
	return core.Info{}, errors.New("connection refused")
}

func TestBackendFailuresAreIOErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, failingBlobs{blob.NewMemory()}, ""); !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected io error on open, got %v", err)
	}
	s := &Store{blobs: failingBlobs{blob.NewMemory()}, key: DefaultKey}
	if err := s.Save(ctx, domain.NewState()); !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected io error on save, got %v", err)
	}
	if s.Location() != "memory:"+DefaultKey {
		t.Fatalf("unexpected location %s", s.Location())
	}
}
