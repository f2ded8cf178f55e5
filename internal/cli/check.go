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
	"encoding/json"
	goerrors "errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/instrument"
)

// checkReport is the JSON shape of a check run.
type checkReport struct {
	File          string                    `json:"file"`
	EligibleLines []int                     `json:"eligibleLines"`
	Functions     []instrument.FunctionInfo `json:"functions"`
}

// NewCheckCommand creates the check command, a parse-and-report pass that
// never runs the macro.
func NewCheckCommand() *cobra.Command {
	var useJSON bool

	cmd := &cobra.Command{
		Use:   "check <macro.js>",
		Short: "Parse a macro and report what the debugger would see",
		Long: `Parse a macro and report what the debugger would see, without running it.

The macro is instrumented exactly as 'run' instruments it. check lists the
lines that can carry a breakpoint and the functions found with their
parameters and body ranges. Syntax errors are reported with their position.`,
		Example: `  macrodbg check macro.js

  # Machine-readable report
  macrodbg check --json macro.js`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], useJSON)
		},
	}

	cmd.Flags().BoolVar(&useJSON, "json", false, "emit the report as JSON")

	return cmd
}

func runCheck(cmd *cobra.Command, path string, useJSON bool) error {
	cfg, err := loadSessionConfig(cmd)
	if err != nil {
		return NewConfigError("invalid configuration", err)
	}
	logger := log.New(cfg.LoggerConfig())

	source, err := os.ReadFile(path)
	if err != nil {
		return NewInvalidMacroError(fmt.Sprintf("cannot read %s", path), err)
	}

	ins := instrument.New(instrument.WithLogger(logger))
	result, err := ins.Instrument(string(source))
	if err != nil {
		var syntaxErr *errors.SyntaxError
		if goerrors.As(err, &syntaxErr) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d:%d: %s\n", path, syntaxErr.Line, syntaxErr.Column, syntaxErr.Message)
		}
		return NewInvalidMacroError(fmt.Sprintf("cannot parse %s", path), err)
	}

	out := cmd.OutOrStdout()

	if useJSON {
		report := checkReport{
			File:          path,
			EligibleLines: result.EligibleLines,
			Functions:     result.Functions,
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "%s: %d executable lines, %d functions\n\n",
		path, len(result.EligibleLines), len(result.Functions))

	fmt.Fprintln(out, "Breakpoint-eligible lines:")
	fmt.Fprintf(out, "  %s\n", formatLineList(result.EligibleLines))

	if len(result.Functions) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FUNCTION\tPOSITION\tBODY\tPARAMS")
	for _, fn := range result.Functions {
		params := "-"
		if len(fn.Params) > 0 {
			params = strings.Join(fn.Params, ", ")
		}
		fmt.Fprintf(w, "%s\t%d:%d\t%d-%d\t%s\n", fn.Name, fn.Line, fn.Column, fn.BodyStart, fn.BodyEnd, params)
	}
	return w.Flush()
}

// formatLineList renders sorted line numbers, collapsing consecutive runs
// into ranges so long macros stay readable.
func formatLineList(lines []int) string {
	if len(lines) == 0 {
		return "none"
	}

	var parts []string
	start, prev := lines[0], lines[0]
	flush := func() {
		switch {
		case start == prev:
			parts = append(parts, fmt.Sprintf("%d", start))
		case prev == start+1:
			parts = append(parts, fmt.Sprintf("%d, %d", start, prev))
		default:
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, line := range lines[1:] {
		if line == prev+1 {
			prev = line
			continue
		}
		flush()
		start, prev = line, line
	}
	flush()
	return strings.Join(parts, ", ")
}
