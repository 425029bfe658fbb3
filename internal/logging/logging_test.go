package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		logger := New(level)
		require.NotNil(t, logger)
	}
}

func TestCLIHandler_Plain(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("scored", "kind", "text", "n", 5)

	assert.Equal(t, "scored: kind=text n=5\n", buf.String())
}

func TestCLIHandler_Color(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo).WithColor(true))

	logger.Error("store failed")
	assert.Contains(t, buf.String(), colorRed)
	assert.Contains(t, buf.String(), colorReset)

	buf.Reset()
	logger.Info("ok")
	assert.Contains(t, buf.String(), colorGreen)
}

func TestCLIHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelWarn))

	logger.Debug("debug")
	logger.Info("info")
	assert.Empty(t, buf.String())

	logger.Warn("warn")
	assert.Contains(t, buf.String(), "warn")
}

func TestCLIHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo)).WithGroup("collect").With("source", "rss")

	logger.Info("done", "items", 3)

	assert.Equal(t, "[collect] done: source=rss items=3\n", buf.String())
}

func TestCLIHandler_NestedGroups(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	base.WithGroup("daemon").WithGroup("scheduler").Info("stopped")
	assert.Equal(t, "[daemon.scheduler] stopped\n", buf.String())

	buf.Reset()
	base.WithGroup("daemon").WithGroup("").Info("up")
	assert.Equal(t, "[daemon] up\n", buf.String())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
