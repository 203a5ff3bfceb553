// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI command
// operations. When stderr is a terminal, uses slog.TextHandler for
// human-readable output. When stderr is piped or redirected (CI,
// scripts, integration tests), uses slog.JSONHandler for
// machine-parseable output.
//
// GREENLIGHT_DEBUG=1 lowers the level to debug; the default level is
// warn so routine commands stay quiet on the terminal.
//
// Commands scope the logger with command-specific context via With():
//
//	logger = logger.With("workflow", name)
func NewCommandLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("GREENLIGHT_DEBUG") != "" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
