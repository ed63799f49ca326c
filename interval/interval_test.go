package interval_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/interval"
)

func TestParseValid(t *testing.T) {
	iv, err := interval.Parse("2W")
	require.NoError(t, err)
	assert.Equal(t, interval.Interval{Multiplier: 2, Unit: interval.Week}, iv)

	iv, err = interval.Parse("3w")
	require.NoError(t, err)
	assert.Equal(t, interval.Week, iv.Unit)
}

func TestParseInvalid(t *testing.T) {
	_, err := interval.Parse("2x")
	require.Error(t, err)
	assert.Equal(t, `Invalid frequency string "2x"`, err.Error())
}

func TestMatchBoundary(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	iv := interval.Interval{Multiplier: 2, Unit: interval.Week}

	assert.True(t, iv.Match(d, d.AddDate(0, 0, 13)))
	assert.False(t, iv.Match(d, d.AddDate(0, 0, 14)))
}

func TestClockOffset(t *testing.T) {
	c := interval.NewClock()
	assert.True(t, c.IsRealTime())

	target := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetNow(target)
	assert.False(t, c.IsRealTime())
	assert.WithinDuration(t, target, c.Now(), time.Second)

	c.SetOffset(0)
	assert.True(t, c.IsRealTime())
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20240101_data.csv", "20240115_data.csv", "20240201_data.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	iv := interval.Interval{Multiplier: 2, Unit: interval.Week}
	asOf := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	got, ok, err := interval.FindLatest(dir, asOf, "_data.csv", iv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "20240115_data.csv"), got)

	asOfFar := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, ok, err = interval.FindLatest(dir, asOfFar, "_data.csv", iv)
	require.NoError(t, err)
	assert.False(t, ok)
}
