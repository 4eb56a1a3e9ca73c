package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/file"
	"github.com/dropserve/service/internal/storage"
)

type stubTokens struct{}

func (stubTokens) DeleteExpiredSignUpTokens(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// removeFailStore simulates a metadata store whose deletes fail.
type removeFailStore struct {
	*file.MemStore
}

func (s *removeFailStore) Remove(ctx context.Context, id string) error {
	return errors.New("db down")
}

func TestRepairedCounterCountsOnlySuccessfulRepairs(t *testing.T) {
	ctx := context.Background()
	counter := repairedTotal.WithLabelValues("record_without_object")

	backend := storage.NewLocal(t.TempDir())
	require.NoError(t, backend.Login(ctx))

	store := file.NewMemStore()
	require.NoError(t, store.Add(ctx, &file.File{
		ID: "ghost", PhysicalName: "ghost.bin", Owner: "alice", Size: 1,
	}))

	// Outside production drift is only logged, never counted as repaired.
	r := New(store, stubTokens{}, backend, nil, false, time.Hour, time.Hour)
	before := testutil.ToFloat64(counter)
	r.RunConsistency(ctx)
	require.Equal(t, before, testutil.ToFloat64(counter))

	// A failed removal in production is not a repair either.
	r = New(&removeFailStore{MemStore: store}, stubTokens{}, backend, nil, true, time.Hour, time.Hour)
	r.RunConsistency(ctx)
	require.Equal(t, before, testutil.ToFloat64(counter))

	// A successful removal is.
	r = New(store, stubTokens{}, backend, nil, true, time.Hour, time.Hour)
	r.RunConsistency(ctx)
	require.Equal(t, before+1, testutil.ToFloat64(counter))
}
