// Package logging provides simple configuration for slog loggers.
// It normalizes user log-level strings and sets handler options.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel normalizes a log level string into slog.Level.
// Unknown values return slog.LevelInfo with an error.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	if s == "" {
		return slog.LevelInfo, nil
	}
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level")
	}
}

// Options controls logger formatting and defaults.
// Writer defaults to stderr when neither Writer nor File is set.
type Options struct {
	Level     string
	AddSource bool
	JSON      bool
	Writer    io.Writer
	// File appends to a log file instead of Writer. The console owns the
	// terminal, so it logs here.
	File        string
	DefaultSlog bool
}

// Logger is a configured slog.Logger plus the file it may own.
type Logger struct {
	*slog.Logger
	Level slog.Level
	file  *os.File
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// New constructs a configured logger.
// When DefaultSlog is true, slog.SetDefault is called.
func New(opt Options) (*Logger, error) {
	level, err := ParseLevel(opt.Level)
	if err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	var f *os.File
	if p := strings.TrimSpace(opt.File); p != "" {
		f, err = OpenFile(p)
		if err != nil {
			return nil, err
		}
		w = f
	}
	lo := &slog.HandlerOptions{
		Level:     level,
		AddSource: opt.AddSource,
	}

	var h slog.Handler
	if opt.JSON {
		h = slog.NewJSONHandler(w, lo)
	} else {
		h = slog.NewTextHandler(w, lo)
	}
	lg := slog.New(h)
	if opt.DefaultSlog {
		slog.SetDefault(lg)
	}
	return &Logger{Logger: lg, Level: level, file: f}, nil
}

// OpenFile opens path for appending, creating private parent directories.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
