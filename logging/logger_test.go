package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedSlog(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestRuntimeLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf, Component: "engine"})

	logger.WithAgent("agent1", "t1").Info("execution started", "step", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "agent1", entry["agent_id"])
	assert.Equal(t, "t1", entry["thread_id"])
	assert.Equal(t, float64(1), entry["step"])
}

func TestRuntimeLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "emitted")
}

func TestRuntimeLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})

	logger.Debug("cache probe", "agent_id", "agent1")
	assert.True(t, strings.Contains(buf.String(), "agent_id=agent1"))
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))

	logger := NewDefaultSlogLogger()
	assert.Equal(t, logger, OrNoOp(logger))
}

func TestScopedHelpers(t *testing.T) {
	t.Run("runtime logger gains component and agent context", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

		scoped := WithAgent(WithComponent(base, "engine"), "agent1", "t1")
		scoped.Info("step")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "engine", entry["component"])
		assert.Equal(t, "agent1", entry["agent_id"])
		assert.Equal(t, "t1", entry["thread_id"])
	})

	t.Run("plain loggers pass through unchanged", func(t *testing.T) {
		logger := NewDefaultSlogLogger()
		assert.Equal(t, logger, WithComponent(logger, "engine"))
		assert.Equal(t, logger, WithAgent(logger, "agent1", "t1"))
		assert.IsType(t, NoOpLogger{}, WithComponent(nil, "engine"))
	})
}

func TestCallInstrumentation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Output: &buf})

	ModelCall(logger, "gpt-4o-mini", 5*time.Millisecond, nil)
	assert.Contains(t, buf.String(), "Model call completed")
	assert.Contains(t, buf.String(), "gpt-4o-mini")

	buf.Reset()
	ToolCall(logger, "get_balance", 2*time.Millisecond, errors.New("backend down"))
	assert.Contains(t, buf.String(), "Tool execution failed")
	assert.Contains(t, buf.String(), "backend down")

	// The plain-logger fallback emits the same message shapes.
	buf.Reset()
	plain := NewSlogAdapter(newBufferedSlog(&buf))
	ModelCall(plain, "mock", time.Millisecond, nil)
	assert.Contains(t, buf.String(), "Model call completed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warn"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("info"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
}
