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
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/debugger"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

// NewRunCommand creates the run command, the interactive debugging session.
func NewRunCommand() *cobra.Command {
	var (
		breakSpecs []string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "run <macro.js>",
		Short: "Run a macro under the interactive debugger",
		Long: `Run a macro under the interactive debugger.

The macro is instrumented and started immediately. Execution pauses at
breakpoints given with --break, listed in the session config, or added from
the shell. While paused, shell commands step through statements, inspect the
call stack and variables, and evaluate expressions in the paused scope.
Press Ctrl+C while the macro runs to pause at the next statement.

With --watch the session stays open after a run finishes and reloads the
macro whenever the file changes on disk, so 'continue' reruns the new code.`,
		Example: `  # Pause at line 12
  macrodbg run --break 12 macro.js

  # Conditional breakpoint at line 12, column 5
  macrodbg run --break '12:5?count > 3' macro.js

  # Rerun on every save
  macrodbg run --watch macro.js`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMacro(cmd, args[0], breakSpecs, watch)
		},
	}

	cmd.Flags().StringArrayVarP(&breakSpecs, "break", "b", nil, "breakpoint as line[:column][?condition], repeatable")
	cmd.Flags().Bool("pause-on-exception", false, "pause when an uncaught exception unwinds the macro")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the macro between runs when the file changes")

	return cmd
}

// runMacro wires config, engine, watcher, and shell together and maps the
// outcome to an exit code.
func runMacro(cmd *cobra.Command, path string, breakSpecs []string, watch bool) error {
	cfg, err := loadSessionConfig(cmd)
	if err != nil {
		return NewConfigError("invalid configuration", err)
	}
	if cmd.Flags().Changed("pause-on-exception") {
		on, _ := cmd.Flags().GetBool("pause-on-exception")
		cfg.Engine.PauseOnException = on
	}

	logger := log.New(cfg.LoggerConfig())
	out := cmd.OutOrStdout()

	source, err := os.ReadFile(path)
	if err != nil {
		return NewInvalidMacroError(fmt.Sprintf("cannot read %s", path), err)
	}

	eng := debugger.New(append(cfg.EngineOptions(), debugger.WithLogger(logger))...)

	result, err := eng.LoadCode(string(source))
	if err != nil {
		var syntaxErr *errors.SyntaxError
		if goerrors.As(err, &syntaxErr) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d:%d: %s\n", path, syntaxErr.Line, syntaxErr.Column, syntaxErr.Message)
		}
		return NewInvalidMacroError(fmt.Sprintf("cannot load %s", path), err)
	}

	fmt.Fprintf(out, "Loaded %s: %d executable lines, %d functions\n",
		path, len(result.EligibleLines), len(result.Functions))

	if len(cfg.Breakpoints) > 0 {
		for _, bp := range eng.LoadBreakpoints(cfg.Breakpoints) {
			warnIneligible(out, result.EligibleLines, bp.Line)
		}
	}
	for _, raw := range breakSpecs {
		spec, err := parseBreakSpec(raw)
		if err != nil {
			return NewConfigError("invalid --break flag", err)
		}
		bp, err := eng.AddBreakpoint(spec.line, spec.options()...)
		if err != nil {
			return NewConfigError("invalid --break flag", err)
		}
		warnIneligible(out, result.EligibleLines, bp.Line)
	}

	if watch {
		watcher, err := newFileWatcher(path, eng, out, logger)
		if err != nil {
			return NewConfigError("cannot watch macro file", err)
		}
		watcher.Start()
		defer watcher.Stop()
	}

	shell := NewShell(eng, cmd.InOrStdin(), out, logger, watch)
	if err := shell.Run(context.Background()); err != nil {
		return NewExecutionError("macro failed", err)
	}
	return nil
}

// warnIneligible flags breakpoints on lines the instrumenter found no
// statement on. They stay registered but will never hit as-is.
func warnIneligible(out io.Writer, eligible []int, line int) {
	if !slices.Contains(eligible, line) {
		fmt.Fprintf(out, "Warning: line %d has no executable statement\n", line)
	}
}
