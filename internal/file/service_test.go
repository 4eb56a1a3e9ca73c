package file_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/cache"
	"github.com/dropserve/service/internal/file"
	"github.com/dropserve/service/internal/storage"
)

type fixture struct {
	svc     *file.Service
	store   *file.MemStore
	backend *storage.Local
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := storage.NewLocal(t.TempDir())
	require.NoError(t, backend.Login(context.Background()))

	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	store := file.NewMemStore()
	svc := file.NewService(store, backend, c, nil, nil)
	return &fixture{svc: svc, store: store, backend: backend}
}

func (fx *fixture) upload(t *testing.T, name, content, owner string, opts file.UploadOptions) *file.File {
	t.Helper()
	f, err := fx.svc.Upload(context.Background(), strings.NewReader(content), int64(len(content)), name, owner, opts)
	require.NoError(t, err)
	return f
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, "a.txt", "hello", "alice", file.UploadOptions{})

	require.Equal(t, "txt", f.Extension)
	require.Equal(t, int64(5), f.Size)
	require.True(t, strings.HasSuffix(f.PhysicalName, ".txt"))

	got, serve, err := fx.svc.Download(context.Background(), f.ID, "", false)
	require.NoError(t, err)
	require.Equal(t, f.ID, got.ID)
	require.Equal(t, "text/plain; charset=utf-8", file.ContentType(got.Extension))

	var body bytes.Buffer
	require.NoError(t, serve(&body))
	require.Equal(t, "hello", body.String())
}

func TestDownload_SecondReadComesFromCache(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, "b.txt", "cache me", "alice", file.UploadOptions{})

	var first bytes.Buffer
	_, serve, err := fx.svc.Download(context.Background(), f.ID, "", false)
	require.NoError(t, err)
	require.NoError(t, serve(&first))

	// Remove the backend object; the cached copy must still serve.
	require.NoError(t, fx.backend.Remove(context.Background(), f.PhysicalName))

	var second bytes.Buffer
	_, serve, err = fx.svc.Download(context.Background(), f.ID, "", false)
	require.NoError(t, err)
	require.NoError(t, serve(&second))
	require.Equal(t, "cache me", second.String())
}

func TestDownload_ExpiredRecordIsNotServed(t *testing.T) {
	fx := newFixture(t)
	past := time.Now().Add(-time.Second)
	f := fx.upload(t, "e.txt", "too late", "alice", file.UploadOptions{ExpiresAt: &past})

	// The reconciler has not run; the record must still read as gone.
	_, _, err := fx.svc.Download(context.Background(), f.ID, "alice", false)
	require.ErrorIs(t, err, file.ErrRecordNotFound)
}

func TestDownload_PrivacyEnforcement(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, "p.txt", "secret", "alice", file.UploadOptions{IsPrivate: true})

	ctx := context.Background()

	_, _, err := fx.svc.Download(ctx, f.ID, "mallory", false)
	require.ErrorIs(t, err, file.ErrForbidden)

	_, _, err = fx.svc.Download(ctx, f.ID, "", false)
	require.ErrorIs(t, err, file.ErrForbidden)

	_, serve, err := fx.svc.Download(ctx, f.ID, "alice", false)
	require.NoError(t, err)
	var body bytes.Buffer
	require.NoError(t, serve(&body))
	require.Equal(t, "secret", body.String())

	_, _, err = fx.svc.Download(ctx, f.ID, "root", true)
	require.NoError(t, err, "admins read private files")
}

func TestSetPrivacy_OwnerFlipsMidway(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, "c.txt", "now private", "alice", file.UploadOptions{})
	ctx := context.Background()

	// Public at first: anyone reads it.
	_, _, err := fx.svc.Download(ctx, f.ID, "mallory", false)
	require.NoError(t, err)

	require.ErrorIs(t, fx.svc.SetPrivacy(ctx, f.ID, "mallory", false, true), file.ErrForbidden)
	require.NoError(t, fx.svc.SetPrivacy(ctx, f.ID, "alice", false, true))

	_, _, err = fx.svc.Download(ctx, f.ID, "mallory", false)
	require.ErrorIs(t, err, file.ErrForbidden)

	_, _, err = fx.svc.Download(ctx, f.ID, "alice", false)
	require.NoError(t, err)
}

func TestDelete_RemovesRecordAndObject(t *testing.T) {
	fx := newFixture(t)
	f := fx.upload(t, "d.txt", "delete me", "alice", file.UploadOptions{})
	ctx := context.Background()

	require.ErrorIs(t, fx.svc.Delete(ctx, f.ID, "mallory", false), file.ErrForbidden)
	require.NoError(t, fx.svc.Delete(ctx, f.ID, "alice", false))

	_, _, err := fx.svc.Download(ctx, f.ID, "alice", false)
	require.ErrorIs(t, err, file.ErrRecordNotFound)

	stats, err := fx.backend.List(ctx)
	require.NoError(t, err)
	for _, st := range stats {
		require.NotEqual(t, f.PhysicalName, st.Basename)
	}
}

func TestUpload_RetriesOnIDCollision(t *testing.T) {
	backend := storage.NewLocal(t.TempDir())
	require.NoError(t, backend.Login(context.Background()))

	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	store := &collidingStore{MemStore: file.NewMemStore()}
	svc := file.NewService(store, backend, c, nil, nil)

	f, err := svc.Upload(context.Background(), strings.NewReader("x"), 1, "a.txt", "alice", file.UploadOptions{})
	require.NoError(t, err)
	require.Len(t, f.ID, 12, "the retry uses a longer random id")

	got, err := store.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.Equal(t, f.PhysicalName, got.PhysicalName)
}

// collidingStore rejects the first Add as a duplicate, simulating two
// same-millisecond uploads from a timestamp-strategy account.
type collidingStore struct {
	*file.MemStore
	collided bool
}

func (s *collidingStore) Add(ctx context.Context, f *file.File) error {
	if !s.collided {
		s.collided = true
		return file.ErrDuplicateID
	}
	return s.MemStore.Add(ctx, f)
}

func TestUpload_LongExtensionIsDropped(t *testing.T) {
	fx := newFixture(t)

	f := fx.upload(t, "archive.backup2024", "x", "alice", file.UploadOptions{})
	require.Empty(t, f.Extension)
	require.NotContains(t, f.PhysicalName, ".")

	f = fx.upload(t, "notes.html", "x", "alice", file.UploadOptions{})
	require.Equal(t, "html", f.Extension)
}

func TestUpload_GeneratorStrategyPerOwner(t *testing.T) {
	backend := storage.NewLocal(t.TempDir())
	require.NoError(t, backend.Login(context.Background()))

	resolve := func(ctx context.Context, ownerID string) string {
		if ownerID == "tsuser" {
			return "timestamp"
		}
		return "random"
	}
	svc := file.NewService(file.NewMemStore(), backend, nil, resolve, nil)

	f, err := svc.Upload(context.Background(), strings.NewReader("x"), 1, "a.txt", "tsuser", file.UploadOptions{})
	require.NoError(t, err)
	for _, r := range f.ID {
		require.True(t, r >= '0' && r <= '9', "timestamp ids are numeric")
	}
}

func TestUpload_FilterIsApplied(t *testing.T) {
	backend := storage.NewLocal(t.TempDir())
	require.NoError(t, backend.Login(context.Background()))

	upper := func(r io.Reader) io.Reader {
		data, _ := io.ReadAll(r)
		return strings.NewReader(strings.ToUpper(string(data)))
	}
	svc := file.NewService(file.NewMemStore(), backend, nil, nil, upper)

	f, err := svc.Upload(context.Background(), strings.NewReader("shhh"), 4, "f.txt", "alice", file.UploadOptions{})
	require.NoError(t, err)

	rc, err := backend.Get(context.Background(), f.PhysicalName, nil)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "SHHH", string(got))
}

func TestListByOwner_Pagination(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < file.PageSize+3; i++ {
		fx.upload(t, "n.txt", "x", "alice", file.UploadOptions{})
	}
	fx.upload(t, "other.txt", "x", "bob", file.UploadOptions{})

	p, err := fx.svc.ListByOwner(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, p.Items, file.PageSize)
	require.Equal(t, 2, p.TotalPages)

	p, err = fx.svc.ListByOwner(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, p.Items, 3)
}
