package reconcile_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/file"
	"github.com/dropserve/service/internal/reconcile"
	"github.com/dropserve/service/internal/storage"
)

type fakeTokenStore struct {
	deleted int64
}

func (f *fakeTokenStore) DeleteExpiredSignUpTokens(ctx context.Context, now time.Time) (int64, error) {
	n := f.deleted
	f.deleted = 0
	return n, nil
}

func setup(t *testing.T, production bool) (*reconcile.Reconciler, *file.MemStore, *storage.Local, *fakeTokenStore) {
	t.Helper()

	backend := storage.NewLocal(t.TempDir())
	require.NoError(t, backend.Login(context.Background()))

	store := file.NewMemStore()
	tokens := &fakeTokenStore{}
	r := reconcile.New(store, tokens, backend, nil, production, time.Hour, time.Hour)
	return r, store, backend, tokens
}

func putObject(t *testing.T, backend *storage.Local, name, content string) {
	t.Helper()
	require.NoError(t, backend.Put(context.Background(), name, bytes.NewReader([]byte(content)), int64(len(content))))
}

func TestConsistency_ConvergesInProduction(t *testing.T) {
	r, store, backend, _ := setup(t, true)
	ctx := context.Background()

	// A record whose object was deleted out from under it.
	require.NoError(t, store.Add(ctx, &file.File{
		ID: "stale", PhysicalName: "stale.bin", Owner: "alice", Size: 3,
	}))

	// An object nothing references.
	putObject(t, backend, "orphan.bin", "???")

	// A healthy pair that must survive.
	putObject(t, backend, "kept.bin", "ok")
	require.NoError(t, store.Add(ctx, &file.File{
		ID: "kept", PhysicalName: "kept.bin", Owner: "alice", Size: 2,
	}))

	r.RunConsistency(ctx)

	_, err := store.GetByID(ctx, "stale")
	require.ErrorIs(t, err, file.ErrRecordNotFound, "record without object is dropped")

	require.False(t, backend.Exists(ctx, "orphan.bin"), "orphan object is removed")

	_, err = store.GetByID(ctx, "kept")
	require.NoError(t, err)
	require.True(t, backend.Exists(ctx, "kept.bin"))
}

func TestConsistency_OnlyLogsOutsideProduction(t *testing.T) {
	r, store, backend, _ := setup(t, false)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, &file.File{
		ID: "stale", PhysicalName: "stale.bin", Owner: "alice", Size: 3,
	}))
	putObject(t, backend, "orphan.bin", "???")

	r.RunConsistency(ctx)

	// Drift accumulates in development on purpose: a stale or shared
	// backend must never be mutated by a dev process.
	_, err := store.GetByID(ctx, "stale")
	require.NoError(t, err)
	require.True(t, backend.Exists(ctx, "orphan.bin"))
}

func TestExpiry_PurgesExpiredFiles(t *testing.T) {
	r, store, backend, _ := setup(t, true)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	putObject(t, backend, "old.bin", "old")
	require.NoError(t, store.Add(ctx, &file.File{
		ID: "old", PhysicalName: "old.bin", Owner: "alice", Size: 3, ExpiresAt: &past,
	}))

	putObject(t, backend, "fresh.bin", "new")
	require.NoError(t, store.Add(ctx, &file.File{
		ID: "fresh", PhysicalName: "fresh.bin", Owner: "alice", Size: 3, ExpiresAt: &future,
	}))

	putObject(t, backend, "forever.bin", "keep")
	require.NoError(t, store.Add(ctx, &file.File{
		ID: "forever", PhysicalName: "forever.bin", Owner: "alice", Size: 4,
	}))

	r.RunExpiry(ctx)

	_, err := store.GetByID(ctx, "old")
	require.ErrorIs(t, err, file.ErrRecordNotFound)
	require.False(t, backend.Exists(ctx, "old.bin"))

	_, err = store.GetByID(ctx, "fresh")
	require.NoError(t, err)
	_, err = store.GetByID(ctx, "forever")
	require.NoError(t, err)
}

func TestExpiry_KeepsObjectOutsideProduction(t *testing.T) {
	r, store, backend, _ := setup(t, false)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	putObject(t, backend, "old.bin", "old")
	require.NoError(t, store.Add(ctx, &file.File{
		ID: "old", PhysicalName: "old.bin", Owner: "alice", Size: 3, ExpiresAt: &past,
	}))

	r.RunExpiry(ctx)

	// The record goes regardless of environment; only the destructive
	// backend removal is production-gated.
	_, err := store.GetByID(ctx, "old")
	require.ErrorIs(t, err, file.ErrRecordNotFound)
	require.True(t, backend.Exists(ctx, "old.bin"))
}

func TestStartStop(t *testing.T) {
	r, _, _, _ := setup(t, true)

	r.Start(context.Background())
	r.Stop()
}
