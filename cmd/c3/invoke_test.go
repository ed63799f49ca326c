package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/interval"
)

func TestParseInvocationArgsWithInterval(t *testing.T) {
	iv, path, kvs, err := parseInvocationArgs([]string{"2W", "a/b", "n=3"})
	require.NoError(t, err)
	require.NotNil(t, iv)
	assert.Equal(t, interval.Interval{Multiplier: 2, Unit: interval.Week}, *iv)
	assert.Equal(t, "a/b", path)
	assert.Equal(t, []string{"n=3"}, kvs)
}

func TestParseInvocationArgsWithoutInterval(t *testing.T) {
	iv, path, kvs, err := parseInvocationArgs([]string{"a/b", "n=3", "m=4"})
	require.NoError(t, err)
	assert.Nil(t, iv)
	assert.Equal(t, "a/b", path)
	assert.Equal(t, []string{"n=3", "m=4"}, kvs)
}

func TestParseInvocationArgsPathOnly(t *testing.T) {
	iv, path, kvs, err := parseInvocationArgs([]string{"a/b"})
	require.NoError(t, err)
	assert.Nil(t, iv)
	assert.Equal(t, "a/b", path)
	assert.Empty(t, kvs)
}

func TestParseInvocationArgsMissingPath(t *testing.T) {
	_, _, _, err := parseInvocationArgs(nil)
	assert.Error(t, err)
}

func TestParseInvocationArgsIntervalOnlyIsMissingPath(t *testing.T) {
	_, _, _, err := parseInvocationArgs([]string{"2W"})
	assert.Error(t, err)
}
