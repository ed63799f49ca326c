package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/worker"
)

func TestPoolRunsSubmittedWork(t *testing.T) {
	pool := worker.NewPool(3)
	defer pool.Stop()

	var n int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Submit(func() {
			atomic.AddInt64(&n, 1)
			wg.Done()
		})
	}
	wg.Wait()
	assert.EqualValues(t, 10, n)
}

type flakyEndpoint struct {
	healthy []bool
	i       int
	mu      sync.Mutex
}

func (f *flakyEndpoint) Status() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.i >= len(f.healthy) {
		return false, nil
	}
	ok := f.healthy[f.i]
	f.i++
	return ok, nil
}

// TestMonitorDeclaresDeadAfterThreeConsecutiveMisses is the regression
// test for spec.md §9's fourth bug: the monitor must run its checks (not
// skip the loop body entirely) and must declare the worker dead only
// after three consecutive misses, recovering the miss count on any
// healthy heartbeat in between.
func TestMonitorDeclaresDeadAfterThreeConsecutiveMisses(t *testing.T) {
	ep := &flakyEndpoint{healthy: []bool{true, false, true, false, false, false}}

	var declaredDead int32
	mon := worker.NewMonitor(ep, 5*time.Millisecond, 3, func() {
		atomic.StoreInt32(&declaredDead, 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(900 * time.Millisecond):
		t.Fatal("monitor never declared the worker dead")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&declaredDead))
}

func TestSelectPortRandomHighRetriesOnCollision(t *testing.T) {
	ln1, port1, err := worker.SelectPort("127.0.0.1", 0, worker.RandomHigh, 5)
	require.NoError(t, err)
	defer ln1.Close()
	assert.NotZero(t, port1)

	ln2, port2, err := worker.SelectPort("127.0.0.1", 0, worker.RandomHigh, 20)
	require.NoError(t, err)
	defer ln2.Close()
	assert.NotEqual(t, port1, port2)
}

func TestSelectPortBailoutFailsOnCollision(t *testing.T) {
	ln, port, err := worker.SelectPort("127.0.0.1", 0, worker.RandomHigh, 1)
	require.NoError(t, err)
	defer ln.Close()

	_, _, err = worker.SelectPort("127.0.0.1", port, worker.Bailout, 1)
	assert.ErrorIs(t, err, worker.ErrPortUnavailable)
}
