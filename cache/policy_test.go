package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/cache"
	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/event"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/statestore"
	"github.com/x2ee/c3/types"
)

func newPolicy(t *testing.T, computeCalls *int) *cache.Policy {
	t.Helper()
	table, err := types.NewTable("a$b", []types.ArgField{{Name: "n", Type: types.Int, IsKey: true}})
	require.NoError(t, err)
	store, err := statestore.OpenSQLiteStore(filepath.Join(t.TempDir(), "s.db"), table)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	expire, err := interval.Parse("2W")
	require.NoError(t, err)

	compute := func(ctx context.Context, ev *event.Event) (any, error) {
		*computeCalls++
		n := ev.ResolvedKeyValues["n"]
		return map[string]any{"n": n}, nil
	}

	return cache.NewPolicy(store, compute, expire, cache.Purge, types.DefaultMatrix())
}

func newEvent(t *testing.T, asOf time.Time, rawValue string) *event.Event {
	t.Helper()
	clk := interval.NewClock()
	clk.SetNow(asOf)
	fields := []types.ArgField{{Name: "n", Type: types.Int, IsKey: true}}
	ev, err := event.New(clk, dpath.MustParse("a/b"), []string{rawValue}, fields, &asOf, event.CacheParams{}, types.DefaultMatrix())
	require.NoError(t, err)
	return ev
}

func TestCacheMissThenHit(t *testing.T) {
	calls := 0
	policy := newPolicy(t, &calls)
	ctx := context.Background()

	first := newEvent(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2")
	result, err := policy.Get(ctx, first)
	require.NoError(t, err)
	asMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, asMap["n"])
	assert.Equal(t, 1, calls)

	second := newEvent(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), "2")
	_, err = policy.Get(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call within the cache window must not recompute")
}

func TestCacheExpiryRecomputes(t *testing.T) {
	calls := 0
	policy := newPolicy(t, &calls)
	ctx := context.Background()

	first := newEvent(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2")
	_, err := policy.Get(ctx, first)
	require.NoError(t, err)

	stale := newEvent(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), "2")
	_, err = policy.Get(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "a stale row beyond the 2-week expiry must trigger recompute")
}

func TestCacheForceAlwaysRecomputes(t *testing.T) {
	calls := 0
	policy := newPolicy(t, &calls)
	ctx := context.Background()

	first := newEvent(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2")
	_, err := policy.Get(ctx, first)
	require.NoError(t, err)

	forced := newEvent(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "2")
	forced.Params.Force = true
	_, err = policy.Get(ctx, forced)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
