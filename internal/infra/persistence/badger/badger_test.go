package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ritual/pkg/domain"
)

func populatedState(t *testing.T) domain.State {
	t.Helper()
	state := domain.NewState()
	day, err := state.AddDay(time.Date(2024, 11, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	for _, raw := range []string{"Zebra crossing", "Apples", "Mop"} {
		title, err := domain.NewNonEmptyString(raw)
		require.NoError(t, err)
		_, err = state.AddHabitToDay(title, day.ID)
		require.NoError(t, err)
	}
	_, err = state.AddDay(time.Date(2024, 11, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return state
}

// TestOpenInMemoryStartsEmpty verifies an empty database loads as an empty state.
func TestOpenInMemoryStartsEmpty(t *testing.T) {
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Days)
	assert.Empty(t, state.Habits)
}

// TestSaveLoadRoundTrip verifies ordering survives a reopen.
func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	store, err := Open(cfg)
	require.NoError(t, err)
	state := populatedState(t)
	require.NoError(t, store.Save(ctx, state))
	require.NoError(t, store.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Equal(state), "round trip mismatch")
	for id, day := range state.Days {
		assert.Equal(t, day.Habits.Keys(), loaded.Days[id].Habits.Keys())
	}
}

// TestSaveReplacesPreviousKeys verifies keys from an older save are removed.
func TestSaveReplacesPreviousKeys(t *testing.T) {
	ctx := context.Background()
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, populatedState(t)))
	smaller := domain.NewState()
	_, err = smaller.AddDay(time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, smaller))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Equal(smaller))
}

// TestLoadCorruptValue verifies undecodable values surface as corrupt data.
func TestLoadCorruptValue(t *testing.T) {
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	id := uuid.New()
	require.NoError(t, store.DB().Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(habitPrefix+id.String()), []byte(`{"id":"`+id.String()+`"}`))
	}))
	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCorruptData)
}

// TestLoadCorruptKey verifies non-UUID keys surface as corrupt data.
func TestLoadCorruptKey(t *testing.T) {
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.DB().Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(dayPrefix+"not-a-uuid"), []byte(`{}`))
	}))
	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrCorruptData)
}

// TestOpenRequiresPath verifies persistent mode needs a directory.
func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.ErrorIs(t, err, domain.ErrIO)
}

// TestCloseStopsGC verifies the GC goroutine exits on Close.
func TestCloseStopsGC(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 10 * time.Millisecond
	store, err := Open(cfg)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, store.Close())
}
