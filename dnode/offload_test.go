package dnode

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/event"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/types"
)

func newTestEvent(t *testing.T) *event.Event {
	t.Helper()
	ev, err := event.New(interval.NewClock(), dpath.MustParse("a/b"), nil, nil, nil, event.CacheParams{}, types.DefaultMatrix())
	require.NoError(t, err)
	return ev
}

// inlinePool runs submitted jobs on their own goroutine, tracking how many
// jobs it has ever run so tests can assert a handler actually went through
// the pool rather than being called in-line.
type inlinePool struct {
	runs atomic.Int32
}

func (p *inlinePool) Submit(fn func()) {
	p.runs.Add(1)
	go fn()
}

func TestComputeCalculateOffloadsSyncHandler(t *testing.T) {
	pool := &inlinePool{}
	c := &Compute{
		call: func(ctx context.Context, args map[string]any) (any, error) {
			return "sync-result", nil
		},
		isAsync: false,
		pool:    pool,
	}

	result, err := c.Calculate(context.Background(), newTestEvent(t))
	require.NoError(t, err)
	assert.Equal(t, "sync-result", result)
	assert.Equal(t, int32(1), pool.runs.Load())
}

func TestCronTaskRunOffloadsSyncHandler(t *testing.T) {
	pool := &inlinePool{}
	task := &CronTask{
		Name: "purge",
		call: func(ctx context.Context, args map[string]any) (any, error) {
			return args["task_name"], nil
		},
		isAsync: false,
		pool:    pool,
	}

	result, err := task.Run(context.Background(), map[string]any{"task_name": "purge"})
	require.NoError(t, err)
	assert.Equal(t, "purge", result)
	assert.Equal(t, int32(1), pool.runs.Load())
}

func TestCronTaskRunSkipsPoolForAsyncHandler(t *testing.T) {
	pool := &inlinePool{}
	task := &CronTask{
		Name: "notify",
		call: func(ctx context.Context, args map[string]any) (any, error) {
			return "notified", nil
		},
		isAsync: true,
		pool:    pool,
	}

	result, err := task.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "notified", result)
	assert.Equal(t, int32(0), pool.runs.Load())
}

func TestComputeCalculateSkipsPoolForAsyncHandler(t *testing.T) {
	pool := &inlinePool{}
	c := &Compute{
		call: func(ctx context.Context, args map[string]any) (any, error) {
			return "async-result", nil
		},
		isAsync: true,
		pool:    pool,
	}

	// IsAsync callers are never offloaded: Calculate must call straight
	// through, leaving the pool untouched.
	result, err := c.Calculate(context.Background(), newTestEvent(t))
	require.NoError(t, err)
	assert.Equal(t, "async-result", result)
	assert.Equal(t, int32(0), pool.runs.Load())
}

func TestOffloadReturnsContextErrorOnCancellation(t *testing.T) {
	pool := &blockingPool{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	resultCh := make(chan error, 1)
	go func() {
		_, err := offload(ctx, pool, func() (any, error) {
			<-pool.release
			return nil, nil
		})
		resultCh <- err
	}()

	cancel()
	err := <-resultCh
	assert.ErrorIs(t, err, context.Canceled)
	close(pool.release)
}

type blockingPool struct {
	release chan struct{}
}

func (p *blockingPool) Submit(fn func()) {
	go fn()
}
