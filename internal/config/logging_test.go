package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected config.LogLevel
	}{
		{"off lowercase", "off", config.LogLevelOff},
		{"off uppercase", "OFF", config.LogLevelOff},
		{"none", "none", config.LogLevelOff},
		{"error lowercase", "error", config.LogLevelError},
		{"info", "info", config.LogLevelInfo},
		{"info uppercase", "INFO", config.LogLevelInfo},
		{"debug lowercase", "debug", config.LogLevelDebug},
		{"with whitespace", "  debug  ", config.LogLevelDebug},
		{"invalid returns error", "invalid", config.LogLevelError},
		{"empty returns error", "", config.LogLevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, config.ParseLogLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level    config.LogLevel
		expected string
	}{
		{config.LogLevelOff, "off"},
		{config.LogLevelError, "error"},
		{config.LogLevelInfo, "info"},
		{config.LogLevelDebug, "debug"},
		{config.LogLevel(99), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}

func TestNewLogger_LevelOff(t *testing.T) {
	t.Parallel()
	logger, err := config.NewLogger(config.LogLevelOff, "")
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	assert.Equal(t, config.LogLevelOff, logger.Level())
	assert.Nil(t, logger.Structured())
}

func TestNewLogger_ValidPath(t *testing.T) {
	t.Parallel()
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := config.NewLogger(config.LogLevelDebug, logPath)
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Error("error message")

	content := readLogFile(t, logPath)
	assert.Contains(t, string(content), "[DEBUG] debug message")
	assert.Contains(t, string(content), "[INFO] info message")
	assert.Contains(t, string(content), "[ERROR] error message")
}

func TestNewLogger_CreatesDirectory(t *testing.T) {
	t.Parallel()
	logPath := filepath.Join(t.TempDir(), "subdir", "deep", "test.log")

	logger, err := config.NewRotatingLogger(config.LogLevelDebug, logPath,
		config.RotationOptions{MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	info, err := os.Stat(filepath.Dir(logPath))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewLogger_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := config.NewLogger(config.LogLevelDebug, "/proc/nonexistent/test.log")
	assert.Error(t, err)
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level    config.LogLevel
		debug    bool
		info     bool
		errorMsg bool
	}{
		{config.LogLevelOff, false, false, false},
		{config.LogLevelError, false, false, true},
		{config.LogLevelInfo, false, true, true},
		{config.LogLevelDebug, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := config.NewWriterLogger(tt.level, &buf)

			logger.Debug("d-line")
			logger.Info("i-line")
			logger.Error("e-line")

			out := buf.String()
			assert.Equal(t, tt.debug, bytes.Contains([]byte(out), []byte("d-line")))
			assert.Equal(t, tt.info, bytes.Contains([]byte(out), []byte("i-line")))
			assert.Equal(t, tt.errorMsg, bytes.Contains([]byte(out), []byte("e-line")))
		})
	}
}

func TestLogger_Mirror(t *testing.T) {
	t.Parallel()
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := config.NewLogger(config.LogLevelInfo, logPath)
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	var console bytes.Buffer
	logger.Mirror(&console)
	logger.Info("both places")

	assert.Contains(t, console.String(), "both places")
	assert.Contains(t, string(readLogFile(t, logPath)), "both places")
}

func TestLogger_Writer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelError, &buf)

	_, err := logger.Writer(config.LogLevelError).Write([]byte("via writer\n"))
	require.NoError(t, err)
	_, err = logger.Writer(config.LogLevelDebug).Write([]byte("debug via writer"))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "via writer")
	assert.NotContains(t, buf.String(), "debug via writer")
}

func TestLogger_Structured(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelDebug, &buf)

	logger.SetJSONOutput(true)
	slogger := logger.Structured()
	require.NotNil(t, slogger)
	slogger.Info("structured message", "key", "value")

	assert.Contains(t, buf.String(), `"msg":"structured message"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestLogger_DebugAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelDebug, &buf)

	logger.DebugAttrs("debug with attrs", slog.String("key1", "value1"), slog.Int("key2", 42))
	logger.ErrorAttrs("error with attrs", slog.String("provider", "Demo"))

	out := buf.String()
	assert.Contains(t, out, "debug with attrs")
	assert.Contains(t, out, "key1=value1")
	assert.Contains(t, out, "key2=42")
	assert.Contains(t, out, "provider=Demo")
}

func TestLogger_DebugAttrs_LevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelError, &buf)

	logger.DebugAttrs("debug attrs", slog.String("key", "value"))
	assert.NotContains(t, buf.String(), "debug attrs")
}

func TestNullLogger(t *testing.T) {
	t.Parallel()
	logger := config.NullLogger()
	require.NotNil(t, logger)

	assert.Equal(t, config.LogLevelOff, logger.Level())

	// Should not panic when logging
	logger.Debug("test debug")
	logger.Info("test info")
	logger.Error("test error")
	logger.DebugAttrs("test", slog.String("key", "value"))

	assert.NoError(t, logger.Close())
}

func TestLogger_SetLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelOff, &buf)
	assert.Nil(t, logger.Structured())

	logger.SetLevel(config.LogLevelDebug)
	assert.Equal(t, config.LogLevelDebug, logger.Level())
	assert.NotNil(t, logger.Structured())

	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func readLogFile(t *testing.T, path string) []byte {
	t.Helper()
	content, err := os.ReadFile(path) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)
	return content
}
