package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/statestore"
)

// CleanCacheTaskName is the built-in maintenance task's name, scheduled
// once per cache-bearing data node whose policy is on_expire=purge
// (spec.md §4.7: "a built-in maintenance task clean_cache(path, task_name,
// trigger_time)...").
const CleanCacheTaskName = "clean_cache"

// CleanCache purges state-store rows older than triggerTime minus expire,
// honouring a cache policy's on_expire=purge disposition. It returns the
// number of rows removed. This is the real implementation of the source's
// never-finished cron_clean_cache stub (spec.md §9).
func CleanCache(ctx context.Context, store statestore.Store, expire interval.Interval, triggerTime time.Time) (int64, error) {
	n, err := store.Purge(ctx, triggerTime, expire)
	if err != nil {
		return 0, fmt.Errorf("cron: clean_cache: %w", err)
	}
	return n, nil
}
