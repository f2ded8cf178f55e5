// Copyright 2025 Chapel Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log configures structured logging for the macro debugger. All
// components log through *slog.Logger instances produced here so that level,
// format, and output destination are controlled in one place.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the log output encoding.
type Format string

const (
	// FormatText produces human-readable key=value output (default).
	FormatText Format = "text"
	// FormatJSON produces one JSON object per line.
	FormatJSON Format = "json"
)

// LevelTrace is a level below slog.LevelDebug for the per-statement hook
// path, which is far too chatty for debug output.
const LevelTrace = slog.Level(-8)

// Shared attribute keys. Using constants keeps field names consistent across
// components so logs can be filtered reliably.
const (
	KeyComponent  = "component"
	KeyRunID      = "run_id"
	KeyLine       = "line"
	KeyColumn     = "column"
	KeyState      = "state"
	KeyBreakpoint = "breakpoint_id"
	KeyFrame      = "frame_id"
	KeyEvent      = "event"
	KeyReason     = "reason"
	KeyError      = "error"
)

// Config controls logger construction.
type Config struct {
	// Level is one of "trace", "debug", "info", "warn", "error".
	Level string
	// Format selects text or JSON output.
	Format Format
	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer
	// AddSource includes file:line of the logging call site.
	AddSource bool
}

// DefaultConfig returns the configuration used when nothing is specified:
// info-level text logs on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatText,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from MACRODBG_LOG_LEVEL and MACRODBG_LOG_FORMAT,
// falling back to defaults for anything unset.
func FromEnv() Config {
	cfg := DefaultConfig()
	if level := os.Getenv("MACRODBG_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("MACRODBG_LOG_FORMAT"); format == string(FormatJSON) {
		cfg.Format = FormatJSON
	}
	return cfg
}

// New creates a logger from the given configuration.
func New(cfg Config) *slog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

// parseLevel maps a level name to a slog.Level, defaulting to info for
// anything unrecognized.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
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

// WithComponent returns a logger tagged with the component name
// ("breakpoint", "instrument", "engine", "shell", ...).
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(KeyComponent, component)
}

// WithRun returns a logger tagged with a debug session's run id.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(KeyRunID, runID)
}

// Err wraps an error as a slog attribute under the shared error key. A nil
// error yields an empty string value so log lines stay greppable.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Trace logs at LevelTrace, for the hook hot path.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}
