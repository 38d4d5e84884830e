package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging verbosity levels.
type LogLevel int

// Log level constants.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

// Rotation defaults for the log file.
const (
	DefaultLogMaxSizeMB  = 25
	DefaultLogMaxBackups = 5
	defaultLogMaxAgeDays = 14
)

// ParseLogLevel parses a log level string.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LogLevelOff
	case "error":
		return LogLevelError
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelError
	}
}

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelOff:
		return "off"
	case LogLevelError:
		return "error"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "error"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelOff, LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}

// RotationOptions controls log file rotation.
type RotationOptions struct {
	MaxSizeMB  int
	MaxBackups int
}

// Logger handles leveled logging to a rotated file and optionally a mirror
// writer such as stderr.
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	out      io.Writer
	closer   io.Closer
	filePath string
	json     bool
	slogger  *slog.Logger
}

// NewLogger creates a new logger writing to filePath with default rotation.
func NewLogger(level LogLevel, filePath string) (*Logger, error) {
	return NewRotatingLogger(level, filePath, RotationOptions{})
}

// NewRotatingLogger creates a logger whose file is rotated by size.
func NewRotatingLogger(level LogLevel, filePath string, opts RotationOptions) (*Logger, error) {
	logger := &Logger{
		level:    level,
		filePath: filePath,
	}

	if level == LogLevelOff || filePath == "" {
		return logger, nil
	}

	// Expand home directory
	if strings.HasPrefix(filePath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		filePath = filepath.Join(home, filePath[2:])
	}

	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultLogMaxBackups
	}

	rotator := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     defaultLogMaxAgeDays,
		Compress:   true,
	}

	logger.out = rotator
	logger.closer = rotator
	logger.filePath = filePath
	logger.rebuildStructured()

	return logger, nil
}

// NewWriterLogger creates a logger that writes to w. It is used for verbose
// console output and in tests.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	logger := &Logger{level: level, out: w}
	logger.rebuildStructured()
	return logger
}

// Mirror duplicates every log line to w.
func (l *Logger) Mirror(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		l.out = w
	} else {
		l.out = io.MultiWriter(l.out, w)
	}
	l.rebuildStructured()
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// SetLevel changes the log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.rebuildStructured()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetJSONOutput switches the structured logger between text and JSON.
func (l *Logger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.json = enabled
	l.rebuildStructured()
}

// Structured returns an slog view of the logger, or nil when there is no
// output configured.
func (l *Logger) Structured() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slogger
}

// rebuildStructured must be called with mu held.
func (l *Logger) rebuildStructured() {
	if l.out == nil || l.level == LogLevelOff {
		l.slogger = nil
		return
	}
	opts := &slog.HandlerOptions{Level: l.level.slogLevel()}
	var h slog.Handler
	if l.json {
		h = slog.NewJSONHandler(lockedWriter{l}, opts)
	} else {
		h = slog.NewTextHandler(lockedWriter{l}, opts)
	}
	l.slogger = slog.New(h)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.log(LogLevelDebug, format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LogLevelInfo, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LogLevelError, format, args...)
}

// DebugAttrs logs a structured debug record.
func (l *Logger) DebugAttrs(msg string, attrs ...slog.Attr) {
	if s := l.Structured(); s != nil {
		s.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
	}
}

// ErrorAttrs logs a structured error record.
func (l *Logger) ErrorAttrs(msg string, attrs ...slog.Attr) {
	if s := l.Structured(); s != nil {
		s.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
	}
}

// Writer returns an io.Writer that writes to the logger at the specified level.
func (l *Logger) Writer(level LogLevel) io.Writer {
	return &logWriter{logger: l, level: level}
}

// log writes a log message if the level is appropriate.
func (l *Logger) log(level LogLevel, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level == LogLevelOff || level > l.level || l.out == nil {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	levelStr := strings.ToUpper(level.String())
	msg := fmt.Sprintf(format, args...)

	_, _ = fmt.Fprintf(l.out, "%s [%s] %s\n", timestamp, levelStr, msg)
}

// lockedWriter serializes slog output with the printf-style methods.
type lockedWriter struct {
	l *Logger
}

func (w lockedWriter) Write(p []byte) (int, error) {
	// slog calls Write while Structured's caller does not hold mu.
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	if w.l.out == nil {
		return len(p), nil
	}
	return w.l.out.Write(p)
}

// logWriter implements io.Writer for the logger.
type logWriter struct {
	logger *Logger
	level  LogLevel
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.logger.log(w.level, "%s", strings.TrimSpace(string(p)))
	return len(p), nil
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	return &Logger{level: LogLevelOff}
}
