package periodic

import (
	"context"
	"sync"
	"time"

	"github.com/x2ee/c3/common"
	"github.com/x2ee/c3/interval"
)

// Gcd returns the greatest common divisor of a and b (Euclid, absolute
// value), matching gcd_pair in the source scheduler.
func Gcd(a, b int) int {
	if b == 0 {
		if a < 0 {
			return -a
		}
		return a
	}
	return Gcd(b, a%b)
}

// GcdAll returns the greatest common divisor of all of ns. Panics on an
// empty slice, matching the source's IndexError on gcd() with no
// arguments — callers always have at least one task before computing a
// tick.
func GcdAll(ns ...int) int {
	r := ns[0]
	for _, n := range ns[1:] {
		r = Gcd(r, n)
	}
	return r
}

// CollectResults receives one task's name and result (or error) after
// every run, matching the source's collect_results hook.
type CollectResults func(name string, result any, err error)

// Runner drives a fixed bag of tasks on one shared tick derived from the
// gcd of their frequencies (spec.md §4.8, §8 scheduler laws). Tasks
// tagged async each run on their own goroutine and the tick waits for
// them before sleeping; sync tasks are offloaded to Pool and not waited
// for, so a slow sync compute does not delay the next tick. With a nil
// Pool, sync tasks run and are waited for like async ones.
type Runner struct {
	Tasks    []*Task
	Clock    *interval.Clock
	Pool     Executor
	Collect  CollectResults
	Shutdown *Shutdown
}

// NewRunner returns a Runner over tasks, ticking against clk and
// offloading sync tasks to pool.
func NewRunner(tasks []*Task, clk *interval.Clock, pool Executor, collect CollectResults) *Runner {
	if collect == nil {
		collect = func(string, any, error) {}
	}
	return &Runner{Tasks: tasks, Clock: clk, Pool: pool, Collect: collect, Shutdown: &Shutdown{}}
}

// Run executes the tick loop until ctx is cancelled or r.Shutdown.Set is
// called. Each tick: every due task is marked run and dispatched (async
// tasks awaited in place via a WaitGroup, sync tasks submitted to the
// pool); the loop then sleeps for the remainder of the tick period, never
// less than zero, matching run_all's "tick - elapsed if elapsed < tick
// else 0" rule.
func (r *Runner) Run(ctx context.Context) {
	if len(r.Tasks) == 0 {
		common.Logger.Warning("periodic: no tasks to run")
		return
	}

	freqs := make([]int, len(r.Tasks))
	for i, t := range r.Tasks {
		freqs[i] = t.Freq
	}
	tick := time.Duration(GcdAll(freqs...)) * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if r.Shutdown.IsSet() {
			return
		}

		start := clockNow(r.Clock)
		var wg sync.WaitGroup
		for _, t := range r.Tasks {
			if !t.isDue(start) {
				continue
			}
			t.markRun(start)
			r.dispatch(ctx, t, &wg)
		}
		wg.Wait()

		elapsed := clockNow(r.Clock).Sub(start)
		if elapsed < tick {
			select {
			case <-ctx.Done():
				return
			case <-time.After(tick - elapsed):
			}
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, t *Task, wg *sync.WaitGroup) {
	run := func() {
		result, err := t.safeCall(ctx)
		r.Collect(t.Name, result, err)
	}
	if t.IsAsync || r.Pool == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run()
		}()
		return
	}
	r.Pool.Submit(run)
}
