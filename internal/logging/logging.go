package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a structured logger writing JSON to w.
// If verbose == true, level = Debug, else Info.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := new(slog.LevelVar)
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// Open returns a logger writing to path, or to stderr when path is empty.
// The returned close func must be called before exit.
func Open(path string, verbose bool) (*slog.Logger, func() error, error) {
	if path == "" {
		return NewLogger(os.Stderr, verbose), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewLogger(f, verbose), f.Close, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
