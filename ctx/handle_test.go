package ctx_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/cache"
	"github.com/x2ee/c3/cron"
	"github.com/x2ee/c3/ctx"
	"github.com/x2ee/c3/dnode"
	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/logic"
)

func writeConfig(t *testing.T, dir, raw string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	return path
}

func newTestRegistry(t *testing.T) *logic.Registry {
	t.Helper()
	reg := logic.NewRegistry()
	require.NoError(t, reg.Register("testlogic:double", logic.Registration{
		Build: func(remaining map[string]any) (logic.Handler, error) {
			return logic.Handler{Kind: logic.Sync, Call: func(ctx context.Context, args map[string]any) (any, error) {
				n, _ := args["n"].(int64)
				return map[string]any{"n": n * 2}, nil
			}}, nil
		},
	}))
	return reg
}

func TestNewHandleBuildsTreeAndPersistsSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `{
		"dnodes": {
			"a": { "children": { "b": {
				"compute": { "args": [{"name": "n", "type": "int", "default": null, "is_key": true}], "logic": {"ref$": "testlogic:double"} },
				"state": { "backend": "sqlite" },
				"cache": { "expire": "1W", "on_expire": "purge" }
			} } }
		}
	}`)

	h, err := ctx.NewHandle(ctx.Options{
		ConfigPath:   cfgPath,
		SnapshotPath: filepath.Join(dir, "snapshot.db"),
		SQLiteDir:    dir,
		Logic:        newTestRegistry(t),
	})
	require.NoError(t, err)
	defer h.Close()

	node, ok := h.Tree.Get(dpath.MustParse("a/b"))
	require.True(t, ok)
	_ = node

	doc, ok, err := h.Snapshot.LoadConfigDocument()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, doc, "a")

	// One synthesised clean_cache task must exist for the purge-configured node.
	tasks, err := handleCronTaskNames(h)
	require.NoError(t, err)
	assert.Contains(t, tasks, "a/b#clean_cache")
}

// TestBuildCronTasksReadsCacheExpiryThroughServiceInterface pins
// buildCronTasks's purge-branch wiring: dn.Cache is statically typed as
// the cache.Service interface (dnode/node.go), so OnExpire/Expire must be
// part of that interface, not just *cache.Policy — a handle built over an
// on_expire=purge cache node must synthesise exactly one clean_cache task
// carrying that node's hash id.
func TestBuildCronTasksReadsCacheExpiryThroughServiceInterface(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `{
		"dnodes": {
			"a": { "children": { "b": {
				"compute": { "args": [{"name": "n", "type": "int", "default": null, "is_key": true}], "logic": {"ref$": "testlogic:double"} },
				"state": { "backend": "sqlite" },
				"cache": { "expire": "2D", "on_expire": "purge" }
			} } }
		}
	}`)

	h, err := ctx.NewHandle(ctx.Options{
		ConfigPath:   cfgPath,
		SnapshotPath: filepath.Join(dir, "snapshot.db"),
		SQLiteDir:    dir,
		Logic:        newTestRegistry(t),
	})
	require.NoError(t, err)
	defer h.Close()

	node, ok := h.Tree.Get(dpath.MustParse("a/b"))
	require.True(t, ok)
	dn := node.(*dnode.DataNode)
	require.NotNil(t, dn.Cache)
	assert.Equal(t, cache.Purge, dn.Cache.OnExpire())
	assert.Equal(t, "2D", dn.Cache.Expire().String())

	wantHashID := "a/b#" + cron.CleanCacheTaskName
	var found *cron.Task
	for _, task := range h.Cron.Tasks {
		if task.HashID == wantHashID {
			found = task
			break
		}
	}
	require.NotNil(t, found, "expected a synthesised clean_cache task for the purge-configured node")
	assert.Equal(t, cron.CleanCacheTaskName, found.Name)
}

func TestLoadConfigDocumentRejectsUnexpectedTopLevelKeys(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `{"dnodes": {}, "extra": 1}`)
	_, err := ctx.LoadConfigDocument(cfgPath)
	assert.Error(t, err)
}

func handleCronTaskNames(h *ctx.Handle) ([]string, error) {
	var names []string
	for _, t := range h.Cron.Tasks {
		names = append(names, t.HashID)
	}
	return names, nil
}
