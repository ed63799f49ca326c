package cron_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/cron"
	"github.com/x2ee/c3/interval"
)

type memLastRunStore struct {
	mu   sync.Mutex
	runs map[string]time.Time
}

func newMemLastRunStore() *memLastRunStore {
	return &memLastRunStore{runs: make(map[string]time.Time)}
}

func (s *memLastRunStore) LastRun(ctx context.Context, hashID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.runs[hashID]
	return t, ok, nil
}

func (s *memLastRunStore) SetLastRun(ctx context.Context, hashID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[hashID] = t
	return nil
}

func TestRunnerRunsDueTaskOnFirstPoll(t *testing.T) {
	sched, err := cron.NewSchedule("* * * * *", "a/b#every_minute")
	require.NoError(t, err)

	clk := interval.NewClock()
	store := newMemLastRunStore()

	var calls int
	var mu sync.Mutex
	collected := make(chan struct{}, 1)

	task := &cron.Task{
		HashID:   "a/b#every_minute",
		Name:     "every_minute",
		Schedule: sched,
		Call: func(ctx context.Context, triggerTime time.Time) (any, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil, nil
		},
	}

	runner := cron.NewRunner([]*cron.Task{task}, clk, store, time.Hour, func(hashID, name string, result any, err error) {
		collected <- struct{}{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go runner.Run(ctx)

	select {
	case <-collected:
	case <-time.After(time.Second):
		t.Fatal("cron task never ran on initial poll")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)

	_, ok, _ := store.LastRun(context.Background(), task.HashID)
	assert.True(t, ok, "last run must be persisted")
}

func TestRunnerIsolatesPanickingTask(t *testing.T) {
	sched, err := cron.NewSchedule("* * * * *", "a/b#bad")
	require.NoError(t, err)

	clk := interval.NewClock()
	store := newMemLastRunStore()

	task := &cron.Task{
		HashID:   "a/b#bad",
		Name:     "bad",
		Schedule: sched,
		Call: func(ctx context.Context, triggerTime time.Time) (any, error) {
			panic("boom")
		},
	}

	var gotErr error
	done := make(chan struct{}, 1)
	runner := cron.NewRunner([]*cron.Task{task}, clk, store, time.Hour, func(hashID, name string, result any, err error) {
		gotErr = err
		done <- struct{}{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go runner.Run(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector never invoked")
	}
	assert.Error(t, gotErr)
}
