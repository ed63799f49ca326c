package statestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/statestore"
	"github.com/x2ee/c3/types"
)

func newTestTable(t *testing.T) *types.Table {
	t.Helper()
	table, err := types.NewTable("region_sales", []types.ArgField{
		{Name: "region", Type: types.Str, IsKey: true},
	})
	require.NoError(t, err)
	return table
}

func newTestStore(t *testing.T) *statestore.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := statestore.OpenSQLiteStore(path, newTestTable(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	day, err := interval.Parse("1D")
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, `{"total": 42}`, asOf, []string{"emea"}))

	row, ok, err := store.Read(ctx, asOf, day, []string{"emea"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"total": 42}`, row.Text)
}

func TestWriteUpsertsOnConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	day, err := interval.Parse("1D")
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "v1", asOf, []string{"emea"}))
	require.NoError(t, store.Write(ctx, "v2", asOf, []string{"emea"}))

	row, ok, err := store.Read(ctx, asOf, day, []string{"emea"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", row.Text)
}

func TestReadMissesOutsideInterval(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	written := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	day, err := interval.Parse("1D")
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "stale", written, []string{"emea"}))

	_, ok, err := store.Read(ctx, asOf, day, []string{"emea"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetDistinctKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	week, err := interval.Parse("1W")
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "x", asOf, []string{"emea"}))
	require.NoError(t, store.Write(ctx, "y", asOf, []string{"apac"}))

	dk, err := store.GetDistinctKeys(ctx, asOf, week)
	require.NoError(t, err)
	assert.Equal(t, []string{"region"}, dk.Columns)
	assert.Len(t, dk.Rows, 2)
}

func TestPurgeRemovesExpiredRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	month, err := interval.Parse("1M")
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "stale", old, []string{"emea"}))

	n, err := store.Purge(ctx, asOf, month)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	week, err := interval.Parse("100W")
	require.NoError(t, err)
	_, ok, err := store.Read(ctx, asOf, week, []string{"emea"})
	require.NoError(t, err)
	assert.False(t, ok)
}
