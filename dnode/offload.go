package dnode

import "context"

// Offloader offloads a synchronous callable onto a bounded worker pool so
// it never runs in-line on the caller's goroutine (spec.md §5; see also
// logic.Handler's doc comment: "sync handlers must be offloaded to the
// blocking executor by the caller"). Shaped identically to
// periodic.Executor so worker.Pool satisfies both without dnode importing
// the worker package.
type Offloader interface {
	Submit(fn func())
}

// offload runs fn on pool and blocks for its result. If ctx is cancelled
// first, offload returns ctx.Err() without waiting any further — the
// submitted job still runs to completion on its pool goroutine, but its
// result is discarded.
func offload(ctx context.Context, pool Offloader, fn func() (any, error)) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	pool.Submit(func() {
		result, err := fn()
		done <- outcome{result, err}
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.result, o.err
	}
}
