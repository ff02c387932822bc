package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return newLogger(os.Stdout, service, level)
}

// NewRotatingJSONLogger writes to stdout and, when file is set, to a size-rotated log file.
// Pass the logger's io.Closer to shut the file down.
func NewRotatingJSONLogger(service, level, file string) (*slog.Logger, io.Closer) {
	if strings.TrimSpace(file) == "" {
		return NewJSONLogger(service, level), nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	return newLogger(io.MultiWriter(os.Stdout, rotator), service, level), rotator
}

// NewStderrJSONLogger keeps stdout free for protocols that own it (MCP stdio).
func NewStderrJSONLogger(service, level string) *slog.Logger {
	return newLogger(os.Stderr, service, level)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
