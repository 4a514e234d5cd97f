package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHomeDirFallsBackWithoutEnv(t *testing.T) {
	t.Setenv("SYNCSPIRIT_HOME", "")
	assert.Equal(t, "/var/lib/syncspirit", HomeDir("/var/lib/syncspirit"))
}

func TestHomeDirUsesEnvWhenSet(t *testing.T) {
	t.Setenv("SYNCSPIRIT_HOME", "/custom/home")
	assert.Equal(t, "/custom/home", HomeDir("fallback"))
}

func TestApplyEnvOverridesLogging(t *testing.T) {
	t.Setenv("SYNCSPIRIT_LOG_LEVEL", "debug")
	t.Setenv("SYNCSPIRIT_LOG_FORMAT", "json")

	opts := OptionsConfiguration{LogLevel: "info", LogFormat: "text"}
	ApplyEnv(&opts)

	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "json", opts.LogFormat)
}
