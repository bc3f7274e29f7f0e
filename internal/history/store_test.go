package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, Record{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Duration:  5 * time.Second,
			Success:   i%2 == 0,
			DataPath:  "/data/userdata.dat",
			Output:    "BN score",
		})
		require.NoError(t, err)
	}

	recs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].StartedAt.After(recs[1].StartedAt), "newest first")
}

func TestAppendAssignsID(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	id, err := store.Append(context.Background(), Record{Success: true, DataPath: "d.dat"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Success)
	assert.Equal(t, "d.dat", rec.DataPath)
	assert.False(t, rec.StartedAt.IsZero())
}

func TestGetMissingReturnsNil(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	id, err := store.Append(context.Background(), Record{Success: false, DataPath: "d.dat", Output: "boom"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "boom", rec.Output)
}
