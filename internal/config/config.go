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

// Package config loads the optional YAML session file for the macro
// debugger: logging settings, engine toggles, and an initial breakpoint
// list. Environment variables override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/breakpoint"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/debugger"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

// Config is a complete debug session configuration.
type Config struct {
	Log         LogConfig             `yaml:"log"`
	Engine      EngineConfig          `yaml:"engine"`
	Breakpoints []breakpoint.Snapshot `yaml:"breakpoints,omitempty"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: MACRODBG_LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (text, json).
	// Environment: MACRODBG_LOG_FORMAT
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: MACRODBG_LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// EngineConfig configures debug engine behavior.
type EngineConfig struct {
	// PauseOnException suspends the run at an uncaught macro exception
	// before it completes as failed.
	// Environment: MACRODBG_PAUSE_ON_EXCEPTION
	// Default: false
	PauseOnException bool `yaml:"pause_on_exception"`

	// FunctionHooks enables call-stack tracking hooks at function entry
	// and exit. Disabling them loses named frames but speeds up macros
	// with hot call paths.
	// Default: true
	FunctionHooks bool `yaml:"function_hooks"`

	// MaxVariableDepth bounds how many levels of nested objects and
	// arrays variable inspection expands.
	// Default: 3
	MaxVariableDepth int `yaml:"max_variable_depth"`

	// MaxValueLength bounds the rendered length of a single value, in
	// runes. 0 means unlimited.
	// Default: 1000
	MaxValueLength int `yaml:"max_value_length"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:     "info",
			Format:    string(log.FormatText),
			AddSource: false,
		},
		Engine: EngineConfig{
			PauseOnException: false,
			FunctionHooks:    true,
			MaxVariableDepth: debugger.DefaultMaxVariableDepth,
			MaxValueLength:   debugger.DefaultMaxValueLength,
		},
	}
}

// Load loads configuration from an optional YAML file and the environment.
// Environment variables take precedence over file values. An empty path
// loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, &errors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &errors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// ResolvePath returns the explicit path when one was given, otherwise the
// default session file location if a file exists there, otherwise empty.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	path, err := DefaultPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// DefaultPath returns the default session file location,
// $XDG_CONFIG_HOME/macrodbg/config.yaml or ~/.config/macrodbg/config.yaml.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "macrodbg", "config.yaml"), nil
}

// loadFromFile loads configuration from a YAML file. Fields absent from the
// file keep their current values.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills zero values left by explicit empty fields in minimal
// config files.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Engine.MaxVariableDepth == 0 {
		c.Engine.MaxVariableDepth = defaults.Engine.MaxVariableDepth
	}
}

// loadFromEnv applies environment variable overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("MACRODBG_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("MACRODBG_LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("MACRODBG_LOG_SOURCE"); val != "" {
		c.Log.AddSource = isTruthy(val)
	}
	if val := os.Getenv("MACRODBG_PAUSE_ON_EXCEPTION"); val != "" {
		c.Engine.PauseOnException = isTruthy(val)
	}
}

func isTruthy(val string) bool {
	return val == "1" || strings.EqualFold(val, "true")
}

// Validate checks that the configuration is usable. The first problem found
// comes back as a *errors.ValidationError naming the offending field.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return &errors.ValidationError{
			Field:      "log.level",
			Message:    fmt.Sprintf("unknown level %q", c.Log.Level),
			Suggestion: "use one of trace, debug, info, warn, error",
		}
	}

	switch log.Format(c.Log.Format) {
	case log.FormatText, log.FormatJSON:
	default:
		return &errors.ValidationError{
			Field:      "log.format",
			Message:    fmt.Sprintf("unknown format %q", c.Log.Format),
			Suggestion: "use text or json",
		}
	}

	if c.Engine.MaxVariableDepth < 1 {
		return &errors.ValidationError{
			Field:   "engine.max_variable_depth",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Engine.MaxVariableDepth),
		}
	}
	if c.Engine.MaxValueLength < 0 {
		return &errors.ValidationError{
			Field:   "engine.max_value_length",
			Message: fmt.Sprintf("must be non-negative, got %d", c.Engine.MaxValueLength),
		}
	}

	for i, snap := range c.Breakpoints {
		if snap.Line < 1 {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("breakpoints[%d].line", i),
				Message: fmt.Sprintf("line must be 1-based, got %d", snap.Line),
			}
		}
		if snap.Column < 0 {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("breakpoints[%d].column", i),
				Message: fmt.Sprintf("column must be non-negative, got %d", snap.Column),
			}
		}
		if snap.HitThreshold < 0 {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("breakpoints[%d].hit_threshold", i),
				Message: fmt.Sprintf("hit threshold must be non-negative, got %d", snap.HitThreshold),
			}
		}
	}

	return nil
}

// LoggerConfig converts the logging section into an internal/log Config.
// Output stays unset so the caller decides the destination.
func (c *Config) LoggerConfig() log.Config {
	return log.Config{
		Level:     c.Log.Level,
		Format:    log.Format(c.Log.Format),
		AddSource: c.Log.AddSource,
	}
}

// EngineOptions converts the engine section into debugger options.
func (c *Config) EngineOptions() []debugger.Option {
	return []debugger.Option{
		debugger.WithPauseOnException(c.Engine.PauseOnException),
		debugger.WithFunctionHooks(c.Engine.FunctionHooks),
		debugger.WithMaxVariableDepth(c.Engine.MaxVariableDepth),
		debugger.WithMaxValueLength(c.Engine.MaxValueLength),
	}
}
