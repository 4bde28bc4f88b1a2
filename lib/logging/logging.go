// Copyright 2026 The YAI Authors
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

// New returns a logger writing to stderr: text when stderr is a
// terminal, JSON when it is piped to a supervisor or a file. Every
// record carries the component name.
func New(component string, level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level).
		With("component", component)
}

// NewWithWriter is New with an explicit destination and format.
func NewWithWriter(w io.Writer, text bool, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// ParseLevel maps a --log-level flag value to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// Discard returns a logger that drops every record. Tests use it for
// components whose log output is irrelevant.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
