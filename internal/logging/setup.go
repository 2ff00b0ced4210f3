package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel maps a config level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Setup installs the default logger. Records go to stderr in color when
// console is true; otherwise, and additionally when path is set, they are
// appended to path without color. The returned closer releases the file.
func Setup(level slog.Level, path string, console bool) (io.Closer, error) {
	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return closer, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		handlers = append(handlers, NewHandler(f, &Options{Level: level}))
	}
	if console {
		handlers = append(handlers, NewHandler(os.Stderr, &Options{Level: level, Color: true}))
	}

	switch len(handlers) {
	case 0:
		slog.SetDefault(slog.New(NewHandler(io.Discard, nil)))
	case 1:
		slog.SetDefault(slog.New(handlers[0]))
	default:
		slog.SetDefault(slog.New(fanout(handlers)))
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
