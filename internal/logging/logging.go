// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide slog logger. charmbracelet/log
// is the handler; output goes to a rotating file because the TUI owns the
// terminal.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	// Level is debug, info, warn or error. Verbose forces debug.
	Level   string
	Verbose bool
	// File is the log path. Empty logs to Stderr instead.
	File string
	// Format is text, json or auto (text on a terminal, json otherwise).
	Format     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Stderr receives output when File is empty. Defaults to os.Stderr.
	Stderr io.Writer
}

// Setup builds the logger, installs it as slog's default and returns it
// along with a closer for the log file.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		out, closer = rotator, rotator
	} else {
		out = opts.Stderr
		if out == nil {
			out = os.Stderr
		}
	}

	logger := slog.New(NewHandler(out, opts))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// NewHandler returns a charmbracelet/log handler writing to w.
func NewHandler(w io.Writer, opts Options) *charmlog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "tinychat",
	})
	handler.SetLevel(ParseLevel(opts.Level))
	if opts.Verbose {
		handler.SetLevel(charmlog.DebugLevel)
	}

	switch strings.ToLower(opts.Format) {
	case "json":
		handler.SetFormatter(charmlog.JSONFormatter)
	case "text":
		handler.SetFormatter(charmlog.TextFormatter)
	default:
		if !isTerminal(w) {
			handler.SetFormatter(charmlog.JSONFormatter)
		}
	}
	return handler
}

// ParseLevel maps a level name to a charmbracelet/log level, defaulting to
// info.
func ParseLevel(name string) charmlog.Level {
	lvl, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return charmlog.InfoLevel
	}
	return lvl
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
