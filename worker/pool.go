// Package worker implements the bounded thread pool that synchronous
// compute callables and blocking database calls are offloaded onto
// (spec.md §5's scheduling model: "callers on the cooperative side must
// never block the loop; compute handlers declared sync are automatically
// thunked"), plus the out-of-core worker-endpoint brief surface (§4.8):
// an HTTP status endpoint, port selection, and heartbeat monitoring.
package worker

import (
	"github.com/x2ee/c3/common"
)

// Pool is a fixed-goroutine-count executor: submitted work is queued on
// an unbuffered channel and picked up by whichever worker goroutine is
// free next. Adapted from the source's queue-backed Worker/Pool pair —
// the external Queue/JobProcessor abstraction is dropped (no backing job
// queue exists in this engine; every submission is an in-process thunk)
// and replaced with a direct func() job shape.
type Pool struct {
	jobs  chan func()
	stop  chan struct{}
	count int
}

// NewPool starts a pool of n worker goroutines. n < 1 is treated as 1.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{jobs: make(chan func()), stop: make(chan struct{}), count: n}
	for i := 0; i < n; i++ {
		go p.runWorker(i)
	}
	return p
}

func (p *Pool) runWorker(id int) {
	for {
		select {
		case fn := <-p.jobs:
			fn()
		case <-p.stop:
			common.Logger.WithField("worker_id", id).Debug("worker stopped")
			return
		}
	}
}

// Submit enqueues fn for execution by the next free worker goroutine,
// blocking the caller until one accepts it or the pool is stopped. This
// satisfies periodic.Executor's Submit(func()) shape as well, so the same
// pool type can back either the cooperative scheduler's sync-task offload
// or a data node's sync compute dispatch. A Submit racing with Stop is
// abandoned rather than left blocked forever on the unbuffered channel.
func (p *Pool) Submit(fn func()) {
	select {
	case p.jobs <- fn:
	case <-p.stop:
	}
}

// Stop halts all worker goroutines. In-flight jobs finish; queued-but-
// unstarted submissions are abandoned.
func (p *Pool) Stop() {
	close(p.stop)
}
