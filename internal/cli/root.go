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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/config"
)

// Version information, injected from main via SetVersion.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns version information.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// NewRootCommand creates the root Cobra command for macrodbg.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "macrodbg",
		Short: "macrodbg - step-through debugger for browser macros",
		Long: `macrodbg is a command-line debugger for scripted browser macros.
It instruments macro source, runs it on an embedded JavaScript runtime,
and lets you pause on breakpoints, step through statements, inspect
variables, and evaluate expressions against the paused program.

Run 'macrodbg run macro.js' to start an interactive session.
Run 'macrodbg check macro.js' to validate a macro without running it.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	cmd.PersistentFlags().String("config", "", "Path to a session config file (default: ~/.config/macrodbg/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "", "Log format: text, json")

	return cmd
}

// loadSessionConfig loads the session file named by --config (or the default
// location) and applies the logging flags over it.
func loadSessionConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.ResolvePath(path))
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
