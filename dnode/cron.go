package dnode

import (
	"context"
	"fmt"

	"github.com/x2ee/c3/dpath"
)

// CronTask is one scheduled invocation declared under a data node's cron
// service: a name, a standard cron schedule expression, and a logic
// handler invoked when the schedule fires.
type CronTask struct {
	Name     string
	Schedule string
	call     func(ctx context.Context, args map[string]any) (any, error)
	isAsync  bool
	pool     Offloader

	nodePath dpath.Path
	hashID   string
}

// HashID returns "<path>#<name>", used to deterministically break ties
// when several tasks share a firing instant (spec.md §4.7).
func (t *CronTask) HashID() string {
	if t.hashID == "" {
		t.hashID = fmt.Sprintf("%s#%s", t.nodePath.String(), t.Name)
	}
	return t.hashID
}

// Run invokes the task's logic handler, offloading a sync handler to the
// bounded worker pool so a slow cron compute never blocks the runner's
// poll loop (spec.md §5).
func (t *CronTask) Run(ctx context.Context, args map[string]any) (any, error) {
	if t.isAsync || t.pool == nil {
		return t.call(ctx, args)
	}
	return offload(ctx, t.pool, func() (any, error) {
		return t.call(ctx, args)
	})
}

// IsAsync reports whether the task's handler was tagged async.
func (t *CronTask) IsAsync() bool { return t.isAsync }

// Cron is a data node's optional scheduled-task service.
type Cron struct {
	Tasks       []*CronTask
	RunnerTable string
}
