// Package periodic implements the cooperative scheduler for a fixed bag
// of periodic tasks sharing one tick (spec.md §4.8): a gcd-derived tick
// loop, sync dispatch to a bounded executor, async dispatch in place, and
// per-task exception isolation.
package periodic

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/x2ee/c3/interval"
)

// Callable is a task's unit of work. IsAsync tags whether the caller
// already runs cooperatively (awaited in place) or must be offloaded to
// a blocking executor (spec.md §5).
type Callable func(ctx context.Context) (any, error)

// Task is one periodically-run unit: a frequency in seconds and a
// callable, tagged sync or async.
type Task struct {
	Name     string
	Freq     int
	Call     Callable
	IsAsync  bool
	lastRun  time.Time
	hasRun   bool
}

// NewTask returns a Task with the given name, frequency (seconds), and
// handler.
func NewTask(name string, freqSeconds int, call Callable, isAsync bool) *Task {
	return &Task{Name: name, Freq: freqSeconds, Call: call, IsAsync: isAsync}
}

func (t *Task) isDue(now time.Time) bool {
	if !t.hasRun {
		return true
	}
	return now.Sub(t.lastRun) > time.Duration(t.Freq)*time.Second
}

func (t *Task) markRun(now time.Time) {
	t.hasRun = true
	t.lastRun = now
}

// safeCall invokes the task's callable, converting a panic into an error
// so one misbehaving task can never take down the runner (spec.md §4.8:
// "a raised exception in one task does not skip any other task in the
// same tick"), matching the source's bare except around each dispatch.
func (t *Task) safeCall(ctx context.Context) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("periodic: task %q panicked: %v", t.Name, rec)
		}
	}()
	return t.Call(ctx)
}

// Executor offloads a synchronous callable so it never blocks the
// cooperative tick loop (spec.md §5 — "compute handlers declared sync are
// automatically thunked").
type Executor interface {
	Submit(fn func())
}

// Shutdown is a cooperative, flag-based stop signal checked once per tick
// (spec.md §5's cancellation model).
type Shutdown struct {
	flag atomic.Bool
}

// Set requests shutdown. In-flight tasks run to completion; the runner
// exits at its next tick check.
func (s *Shutdown) Set() { s.flag.Store(true) }

// IsSet reports whether shutdown has been requested.
func (s *Shutdown) IsSet() bool { return s.flag.Load() }

// clockNow reads the simulated clock, matching the source's use of
// SimulatedTime for is_due/elapsed computations while real wall time
// governs the runner's sleep (see Run).
func clockNow(clk *interval.Clock) time.Time {
	return clk.Now()
}
