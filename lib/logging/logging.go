// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects the slog handler.
type Format string

const (
	// FormatAuto uses text on a terminal and JSON otherwise.
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel maps "debug", "info", "warn", and "error" (any case) to a
// slog level. The empty string means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a logger writing to stderr. With FormatAuto, a terminal
// gets slog.TextHandler for human reading and anything else (pipes,
// journald, CI) gets slog.JSONHandler.
func New(level slog.Level, format Format) (*slog.Logger, error) {
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = FormatText
		}
	}
	return newLogger(os.Stderr, level, format)
}

func newLogger(w io.Writer, level slog.Level, format Format) (*slog.Logger, error) {
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatText:
		return slog.New(slog.NewTextHandler(w, options)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
