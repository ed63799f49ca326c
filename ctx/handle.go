package ctx

import (
	"context"
	"fmt"
	"time"

	"github.com/x2ee/c3/cache"
	"github.com/x2ee/c3/cron"
	"github.com/x2ee/c3/dnode"
	"github.com/x2ee/c3/event"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/logic"
	"github.com/x2ee/c3/periodic"
	"github.com/x2ee/c3/types"
	"github.com/x2ee/c3/worker"
)

// cleanCacheSchedule is the built-in maintenance task's polling cadence:
// hourly, matching the state store's day-granularity freshness window —
// there is no value in purging more often than that.
const cleanCacheSchedule = "0 * * * *"

// Handle bundles every collaborator a running engine needs, replacing the
// source's thread-local config ContextVar with one value every caller
// threads explicitly (spec.md §9 design note).
type Handle struct {
	Tree     *dnode.Tree
	Clock    *interval.Clock
	Snapshot *Snapshot
	Pool     *worker.Pool
	PgPools  *PgPoolCache
	Tracker  *event.Tracker

	Periodic *periodic.Runner
	Cron     *cron.Runner
}

// Options configures NewHandle.
type Options struct {
	ConfigPath   string
	SnapshotPath string
	SQLiteDir    string
	Logic        *logic.Registry
	Matrix       *types.Matrix
	PoolSize     int
}

// NewHandle loads the configuration document, builds the data-node tree,
// opens the durable snapshot store, and wires the periodic and cron
// runners (including one built-in clean_cache task per cache-bearing,
// on_expire=purge data node).
func NewHandle(opts Options) (*Handle, error) {
	dnodesConfig, err := LoadConfigDocument(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	snapshot, err := OpenSnapshot(opts.SnapshotPath)
	if err != nil {
		return nil, err
	}

	pgPools := NewPgPoolCache()
	matrix := opts.Matrix
	if matrix == nil {
		matrix = types.DefaultMatrix()
	}

	poolSize := opts.PoolSize
	if poolSize < 1 {
		poolSize = 4
	}
	pool := worker.NewPool(poolSize)

	tree, err := dnode.NewTree(dnodesConfig, dnode.Builders{
		Logic:    opts.Logic,
		Matrix:   matrix,
		NewStore: NewStoreFactory(opts.SQLiteDir, pgPools),
		Pool:     pool,
	})
	if err != nil {
		pool.Stop()
		pgPools.Close()
		_ = snapshot.Close()
		return nil, fmt.Errorf("ctx: building data-node tree: %w", err)
	}

	if err := snapshot.SaveConfigDocument(dnodesConfig); err != nil {
		return nil, fmt.Errorf("ctx: persisting config snapshot: %w", err)
	}

	h := &Handle{
		Tree:     tree,
		Clock:    interval.NewClock(),
		Snapshot: snapshot,
		Pool:     pool,
		PgPools:  pgPools,
		Tracker:  event.NewTracker(256),
	}

	cronTasks, err := h.buildCronTasks()
	if err != nil {
		return nil, err
	}
	h.Cron = cron.NewRunner(cronTasks, h.Clock, snapshot, time.Minute, nil)
	h.Periodic = periodic.NewRunner(h.buildPeriodicTasks(), h.Clock, h.Pool, nil)

	return h, nil
}

// buildPeriodicTasks returns the handle's fixed bag of always-on
// maintenance tasks — today, just a tracker watermark log — distinct from
// the per-node cron schedules, matching spec.md §1's "periodic runner
// drives scheduled maintenance... without interfering with on-demand
// calls".
func (h *Handle) buildPeriodicTasks() []*periodic.Task {
	return []*periodic.Task{
		periodic.NewTask("tracker_watermark", 30, func(ctx context.Context) (any, error) {
			return h.Tracker.Len(), nil
		}, false),
	}
}

// buildCronTasks flattens every data node's declared cron.Tasks plus one
// synthesised clean_cache task per cache-bearing node configured
// on_expire=purge (spec.md §4.7, §9: the source's cron_clean_cache was
// never implemented; this closes it).
func (h *Handle) buildCronTasks() ([]*cron.Task, error) {
	var tasks []*cron.Task

	for _, dn := range h.Tree.DataNodes() {
		if dn.Cron == nil {
			continue
		}
		nodePath := dn.Path().String()
		for _, t := range dn.Cron.Tasks {
			t := t
			sched, err := cron.NewSchedule(t.Schedule, t.HashID())
			if err != nil {
				return nil, fmt.Errorf("ctx: cron task %s: %w", t.HashID(), err)
			}
			tasks = append(tasks, &cron.Task{
				HashID:   t.HashID(),
				Name:     t.Name,
				Schedule: sched,
				Call: func(ctx context.Context, triggerTime time.Time) (any, error) {
					return t.Run(ctx, map[string]any{
						"path":         nodePath,
						"task_name":    t.Name,
						"trigger_time": triggerTime,
					})
				},
			})
		}
	}

	for _, dn := range h.Tree.DataNodes() {
		if dn.Cache == nil || dn.State == nil {
			continue
		}
		if dn.Cache.OnExpire() != cache.Purge {
			continue
		}
		path := dn.Path()
		state := dn.State
		expire := dn.Cache.Expire()
		hashID := fmt.Sprintf("%s#%s", path.String(), cron.CleanCacheTaskName)
		sched, err := cron.NewSchedule(cleanCacheSchedule, hashID)
		if err != nil {
			return nil, fmt.Errorf("ctx: clean_cache schedule for %s: %w", path.String(), err)
		}
		tasks = append(tasks, &cron.Task{
			HashID:   hashID,
			Name:     cron.CleanCacheTaskName,
			Schedule: sched,
			Call: func(ctx context.Context, triggerTime time.Time) (any, error) {
				n, err := cron.CleanCache(ctx, state, expire, triggerTime)
				return n, err
			},
		})
	}

	return tasks, nil
}

// Close releases every resource the handle opened.
func (h *Handle) Close() error {
	h.Pool.Stop()
	h.PgPools.Close()
	return h.Snapshot.Close()
}
