package storage_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/storage"
)

func newLocal(t *testing.T) *storage.Local {
	t.Helper()
	l := storage.NewLocal(t.TempDir())
	require.NoError(t, l.Login(context.Background()))
	return l
}

func TestLocal_RoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	payload := []byte("hello world, this survives a round trip")

	require.NoError(t, l.Put(ctx, "greeting.txt", bytes.NewReader(payload), int64(len(payload))))

	rc, err := l.Get(ctx, "greeting.txt", nil)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestLocal_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	require.NoError(t, l.Put(ctx, "a.bin", bytes.NewReader([]byte("first")), 5))
	require.NoError(t, l.Put(ctx, "a.bin", bytes.NewReader([]byte("second")), 6))

	rc, err := l.Get(ctx, "a.bin", nil)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "second", string(got))
}

func TestLocal_GetMissing(t *testing.T) {
	l := newLocal(t)

	_, err := l.Get(context.Background(), "nope.txt", nil)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocal_RangeRead(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	require.NoError(t, l.Put(ctx, "r.txt", bytes.NewReader([]byte("0123456789")), 10))

	rc, err := l.Get(ctx, "r.txt", &storage.ByteRange{Start: 2, End: 5})
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "2345", string(got))
}

func TestLocal_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	require.NoError(t, l.Put(ctx, "gone.txt", bytes.NewReader([]byte("x")), 1))

	require.NoError(t, l.Remove(ctx, "gone.txt"))
	require.NoError(t, l.Remove(ctx, "gone.txt"))
	require.NoError(t, l.Remove(ctx, "never-existed.txt"))
}

func TestLocal_ListCorrelation(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	payload := []byte("listed content")
	require.NoError(t, l.Put(ctx, "listed.dat", bytes.NewReader(payload), int64(len(payload))))

	stats, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, "listed.dat", stats[0].Basename)
	require.Equal(t, int64(len(payload)), stats[0].Size)
}

func TestLocal_ExistsAndStat(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	require.False(t, l.Exists(ctx, "missing"))
	require.Nil(t, l.Stat(ctx, "missing"))

	require.NoError(t, l.Put(ctx, "here.txt", bytes.NewReader([]byte("abc")), 3))
	require.True(t, l.Exists(ctx, "here.txt"))

	st := l.Stat(ctx, "here.txt")
	require.NotNil(t, st)
	require.Equal(t, int64(3), st.Size)
}
