package cron_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/cron"
)

func TestNewScheduleParsesFixedExpression(t *testing.T) {
	sched, err := cron.NewSchedule("30 4 * * *", "a/b#clean_cache")
	require.NoError(t, err)

	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	next := sched.Next(base)
	assert.Equal(t, 4, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.Equal(t, 30, next.Day())
}

// TestWildcardHashingIsDeterministicAndVariesByHashID exercises spec.md
// §4.7's "hash id... deterministically break ties in schedule
// evaluation": two tasks sharing the same all-wildcard minute-field
// expression must not necessarily fire at the same minute, and a given
// hash id must always resolve to the same minute.
func TestWildcardHashingIsDeterministicAndVariesByHashID(t *testing.T) {
	s1a, err := cron.NewSchedule("* * * * *", "a/b#task1")
	require.NoError(t, err)
	s1b, err := cron.NewSchedule("* * * * *", "a/b#task1")
	require.NoError(t, err)
	s2, err := cron.NewSchedule("* * * * *", "a/b#task2")
	require.NoError(t, err)

	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, s1a.Next(base), s1b.Next(base), "same hash id must resolve identically")

	var sawDifference bool
	for i := 0; i < 24; i++ {
		b := base.Add(time.Duration(i) * time.Hour)
		if !s1a.Next(b).Equal(s2.Next(b)) {
			sawDifference = true
			break
		}
	}
	assert.True(t, sawDifference, "distinct hash ids should generally resolve to distinct offsets")
}

func TestIsDueWithZeroLastRunFiresImmediately(t *testing.T) {
	sched, err := cron.NewSchedule("0 0 * * *", "a/b#task")
	require.NoError(t, err)
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	assert.True(t, cron.IsDue(sched, time.Time{}, now))
}

func TestIsDueRespectsLastRun(t *testing.T) {
	sched, err := cron.NewSchedule("0 * * * *", "a/b#task")
	require.NoError(t, err)
	lastRun := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	assert.False(t, cron.IsDue(sched, lastRun, lastRun.Add(30*time.Minute)))
	assert.True(t, cron.IsDue(sched, lastRun, lastRun.Add(90*time.Minute)))
}
