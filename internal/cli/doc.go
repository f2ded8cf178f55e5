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

/*
Package cli implements the macrodbg command tree.

# Command Tree

The CLI is organized as:

	macrodbg
	├── run      Debug a macro interactively
	├── check    Validate macro syntax and report breakpoint-eligible lines
	└── help     Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(cli.NewRunCommand())
	rootCmd.AddCommand(cli.NewCheckCommand())
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--config       Path to a session config file
	--log-level    Log level (trace, debug, info, warn, error)
	--log-format   Log format (text, json)

# Error Handling

Errors are handled centrally to ensure proper exit codes:

  - Exit 0: Success, or a session the user stopped
  - Exit 1: Macro execution failed
  - Exit 2: Macro could not be read or parsed
  - Exit 3: Invalid configuration or flags
*/
package cli
