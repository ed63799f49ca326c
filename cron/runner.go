package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/periodic"
)

// LastRunStore persists each cron task's last-run instant across restarts,
// keyed by hash id, so the runner's due-ness check survives process
// bounces (spec.md §6 "Durable files").
type LastRunStore interface {
	LastRun(ctx context.Context, hashID string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, hashID string, t time.Time) error
}

// Task is one scheduled unit the runner drives: a hash id for tie-break
// hashing and durable bookkeeping, a schedule, and the handler to invoke
// when due.
type Task struct {
	HashID   string
	Name     string
	Schedule *Schedule
	Call     func(ctx context.Context, triggerTime time.Time) (any, error)
}

// CollectResults receives one task's name and result (or error) after
// every run.
type CollectResults func(hashID, name string, result any, err error)

// Runner polls a fixed bag of cron tasks on a regular interval, running
// each task whose schedule has an activation since its last recorded run
// (spec.md §4.7's "scheduled invocation semantics mirror a standard cron
// expression evaluated against the simulated clock").
type Runner struct {
	Tasks        []*Task
	Clock        *interval.Clock
	Store        LastRunStore
	Collect      CollectResults
	PollInterval time.Duration
	Shutdown     *periodic.Shutdown
}

// NewRunner returns a Runner polling every pollInterval (defaulting to one
// minute, cron's native granularity, if zero or negative).
func NewRunner(tasks []*Task, clk *interval.Clock, store LastRunStore, pollInterval time.Duration, collect CollectResults) *Runner {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	if collect == nil {
		collect = func(string, string, any, error) {}
	}
	return &Runner{Tasks: tasks, Clock: clk, Store: store, Collect: collect, PollInterval: pollInterval, Shutdown: &periodic.Shutdown{}}
}

// Run polls until ctx is cancelled or r.Shutdown.Set is called.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	r.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.Shutdown.IsSet() {
				return
			}
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	now := r.Clock.Now()
	for _, t := range r.Tasks {
		lastRun, ok, err := r.Store.LastRun(ctx, t.HashID)
		if err != nil {
			r.Collect(t.HashID, t.Name, nil, fmt.Errorf("cron: reading last run for %s: %w", t.HashID, err))
			continue
		}
		if !ok {
			lastRun = time.Time{}
		}
		if !IsDue(t.Schedule, lastRun, now) {
			continue
		}

		result, err := r.safeRun(ctx, t, now)
		r.Collect(t.HashID, t.Name, result, err)
		if setErr := r.Store.SetLastRun(ctx, t.HashID, now); setErr != nil {
			r.Collect(t.HashID, t.Name, nil, fmt.Errorf("cron: persisting last run for %s: %w", t.HashID, setErr))
		}
	}
}

func (r *Runner) safeRun(ctx context.Context, t *Task, now time.Time) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cron: task %q panicked: %v", t.HashID, rec)
		}
	}()
	return t.Call(ctx, now)
}
