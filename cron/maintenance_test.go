package cron_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/cron"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/statestore"
	"github.com/x2ee/c3/types"
)

func TestCleanCachePurgesExpiredRows(t *testing.T) {
	table, err := types.NewTable("clean_cache_test", []types.ArgField{
		{Name: "n", Type: types.Int, IsKey: true},
	})
	require.NoError(t, err)
	store, err := statestore.OpenSQLiteStore(filepath.Join(t.TempDir(), "clean.db"), table)
	require.NoError(t, err)

	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(ctx, `{"v":1}`, old, []string{"1"}))

	iv := interval.Interval{Multiplier: 1, Unit: interval.Week}
	trigger := old.Add(60 * 24 * time.Hour)

	n, err := cron.CleanCache(ctx, store, iv, trigger)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, ok, err := store.Read(ctx, trigger, interval.Interval{Multiplier: 1000, Unit: interval.Year}, []string{"1"})
	require.NoError(t, err)
	require.False(t, ok, "expired row must have been purged")
}
