package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/config"
)

func TestLoadServiceDefaults(t *testing.T) {
	service, err := config.NewConfigLoader("C3_TEST_UNSET").LoadService()
	require.NoError(t, err)
	assert.Equal(t, "development", service.Environment)
	assert.Equal(t, "info", service.LogLevel)
}

func TestLoadServiceRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("C3_TEST_BAD_LOG_LEVEL", "verbose")
	_, err := config.NewConfigLoader("C3_TEST_BAD").LoadService()
	assert.Error(t, err)
}

func TestEnvConfigGetters(t *testing.T) {
	os.Unsetenv("C3_TEST_KEY")
	env := config.NewEnvConfig("C3_TEST")
	assert.Equal(t, "fallback", env.GetString("KEY", "fallback"))

	t.Setenv("C3_TEST_KEY", "value")
	assert.Equal(t, "value", env.GetString("KEY", "fallback"))
}
