// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Format is text, json or logfmt. Empty means text.
	Format string
	// Verbose forces debug regardless of Level.
	Verbose bool
	// Output defaults to stderr so stdout stays clean for command output.
	Output io.Writer
}

// New builds the process logger.
func New(opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	formatter, err := parseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	return log.NewWithOptions(out, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: formatter != log.TextFormatter || level == log.DebugLevel,
		TimeFormat:      time.RFC3339,
	}), nil
}

// Component returns a child logger tagged with the component name.
func Component(parent *log.Logger, name string) *log.Logger {
	if parent == nil {
		parent = log.Default()
	}
	return parent.WithPrefix(name)
}

// Discard returns a logger that drops everything. Used by tests and by
// commands whose output must not be interleaved with logs.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

func parseFormat(format string) (log.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("log format %q: must be text, json or logfmt", format)
	}
}
