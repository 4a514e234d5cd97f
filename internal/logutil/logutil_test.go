package logutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("not-a-level"))
}

func TestParseLevelRecognizesNamedLevels(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
}

func TestResetPicksUpEnvLevelChange(t *testing.T) {
	t.Setenv("SYNCSPIRIT_LOG_LEVEL", "debug")
	Reset()
	t.Cleanup(Reset)

	assert.True(t, base.Enabled(nil, slog.LevelDebug))
}

func TestResetPicksUpJSONFormat(t *testing.T) {
	t.Setenv("SYNCSPIRIT_LOG_FORMAT", "json")
	Reset()
	t.Cleanup(Reset)

	_, isJSON := handler.(*slog.JSONHandler)
	assert.True(t, isJSON)
}

func TestForReturnsLoggerScopedToComponent(t *testing.T) {
	os.Unsetenv("SYNCSPIRIT_LOG_FORMAT")
	Reset()
	t.Cleanup(Reset)

	l := For("scanner")
	require := l != nil
	assert.True(t, require)
}

func TestErrorWrapsErrUnderErrorKey(t *testing.T) {
	attr := Error(assertErr{})
	assert.Equal(t, "error", attr.Key)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
