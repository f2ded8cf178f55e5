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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/debugger"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

const shellEventBuffer = 64

// Shell provides the interactive debugging interface around a debug engine.
// It prints engine events as they arrive and prompts for commands whenever
// execution pauses.
type Shell struct {
	engine *debugger.Engine
	input  *bufio.Scanner
	output io.Writer
	logger *slog.Logger
	watch  bool
	events chan debugger.Event
	prompt string
}

// NewShell creates a shell connected to the given engine. With watch
// enabled, the shell keeps the session open after a run finishes so a
// reloaded macro can be rerun.
func NewShell(engine *debugger.Engine, input io.Reader, output io.Writer, logger *slog.Logger, watch bool) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		engine: engine,
		input:  bufio.NewScanner(input),
		output: output,
		logger: log.WithComponent(logger, "shell"),
		watch:  watch,
		events: make(chan debugger.Event, shellEventBuffer),
		prompt: "(macrodbg) ",
	}
}

// Run starts the macro and drives the interactive session until the run
// finishes, the user quits, or the context ends. The returned error is nil
// when the session ended by user choice, including after a stop.
func (s *Shell) Run(ctx context.Context) error {
	s.subscribe()
	s.logger.Debug("session starting", "watch", s.watch)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := s.engine.Run(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.engine.Stop()
			return ctx.Err()

		case sig := <-sigCh:
			if s.handleSignal(sig) {
				return nil
			}

		case event := <-s.events:
			done, err := s.handleEvent(ctx, event)
			if done || err != nil {
				return err
			}
		}
	}
}

// subscribe funnels the session-relevant engine events into the shell's
// channel. Listeners run on engine goroutines, so they only forward.
func (s *Shell) subscribe() {
	forward := func(event debugger.Event) error {
		s.events <- event
		return nil
	}
	for _, eventType := range []debugger.EventType{
		debugger.EventStarted,
		debugger.EventPaused,
		debugger.EventLogpoint,
		debugger.EventPlayRequested,
		debugger.EventCompleted,
		debugger.EventStopped,
	} {
		s.engine.On(eventType, forward)
	}
}

// handleSignal maps Ctrl+C to a pause request and SIGTERM to a stop.
// Returns true when the session should end.
func (s *Shell) handleSignal(sig os.Signal) bool {
	if sig == syscall.SIGTERM {
		fmt.Fprintln(s.output, "\n⊘ Terminated")
		s.engine.Stop()
		return true
	}

	switch s.engine.State() {
	case debugger.StateRunning, debugger.StateStepping:
		fmt.Fprintln(s.output, "\nInterrupt: pausing at the next statement...")
		s.engine.Pause()
	default:
		fmt.Fprintln(s.output, "\nInterrupted. Type 'quit' to exit.")
	}
	return false
}

// handleEvent reacts to one engine event. It returns done=true when the
// session is over.
func (s *Shell) handleEvent(ctx context.Context, event debugger.Event) (bool, error) {
	switch event.Type {
	case debugger.EventStarted:
		data := event.Data.(debugger.StartedData)
		fmt.Fprintf(s.output, "→ Macro running (run %s)\n", shortID(data.RunID))

	case debugger.EventPaused:
		data := event.Data.(debugger.PauseData)
		s.printPause(data)
		return s.promptLoop(ctx)

	case debugger.EventLogpoint:
		data := event.Data.(debugger.LogpointData)
		fmt.Fprintf(s.output, "◉ line %d: %s\n", data.Line, data.Message)

	case debugger.EventPlayRequested:
		data := event.Data.(debugger.PlayData)
		fmt.Fprintf(s.output, "⊳ iimPlay: %s\n", data.Macro)

	case debugger.EventCompleted:
		data := event.Data.(debugger.CompletionData)
		s.printCompletion(data)
		if !s.watch {
			return true, data.Err
		}
		fmt.Fprintln(s.output, "Watching for changes; 'continue' reruns the macro, 'quit' exits.")
		return s.promptLoop(ctx)

	case debugger.EventStopped:
		fmt.Fprintln(s.output, "⊘ Execution stopped")
		if !s.watch {
			return true, nil
		}
		fmt.Fprintln(s.output, "Watching for changes; 'continue' reruns the macro, 'quit' exits.")
		return s.promptLoop(ctx)
	}

	return false, nil
}

// promptLoop reads commands until one hands control back to the engine or
// ends the session. EOF on input ends the session like quit.
func (s *Shell) promptLoop(ctx context.Context) (bool, error) {
	for {
		fmt.Fprint(s.output, s.prompt)

		if !s.input.Scan() {
			fmt.Fprintln(s.output)
			if err := s.input.Err(); err != nil {
				s.engine.Stop()
				return true, fmt.Errorf("input error: %w", err)
			}
			s.engine.Stop()
			return true, nil
		}

		line := strings.TrimSpace(s.input.Text())
		if line == "" {
			continue
		}

		release, quit, err := s.dispatch(ctx, line)
		if err != nil {
			fmt.Fprintf(s.output, "Error: %v\n", err)
			continue
		}
		if quit {
			s.engine.Stop()
			return true, nil
		}
		if release {
			return false, nil
		}
	}
}

// dispatch executes one shell command. release reports that control went
// back to the engine and events should be awaited; quit ends the session.
func (s *Shell) dispatch(ctx context.Context, line string) (release, quit bool, err error) {
	fields := strings.Fields(line)
	command := strings.ToLower(fields[0])
	rest := strings.TrimSpace(line[len(fields[0]):])

	switch command {
	case "c", "continue":
		if err := s.engine.Run(ctx); err != nil {
			return false, false, err
		}
		return true, false, nil

	case "n", "next", "step":
		if s.engine.State() != debugger.StatePaused {
			return false, false, &errors.StateError{Op: "step", State: string(s.engine.State())}
		}
		s.engine.StepOver()
		return true, false, nil

	case "into":
		if s.engine.State() != debugger.StatePaused {
			return false, false, &errors.StateError{Op: "step into", State: string(s.engine.State())}
		}
		s.engine.StepInto()
		return true, false, nil

	case "out":
		if s.engine.State() != debugger.StatePaused {
			return false, false, &errors.StateError{Op: "step out", State: string(s.engine.State())}
		}
		s.engine.StepOut()
		return true, false, nil

	case "stack":
		s.printStack()
		return false, false, nil

	case "vars":
		return false, false, s.printVariables(rest)

	case "eval":
		if rest == "" {
			return false, false, fmt.Errorf("eval requires an expression")
		}
		return false, false, s.evaluate(rest)

	case "b", "break":
		if rest == "" {
			return false, false, fmt.Errorf("break requires a line, e.g. 'break 12' or 'break 12?count > 3'")
		}
		return false, false, s.addBreakpoint(rest)

	case "d", "delete":
		if rest == "" {
			return false, false, fmt.Errorf("delete requires a breakpoint id")
		}
		return false, false, s.deleteBreakpoint(rest)

	case "bp", "breakpoints":
		s.printBreakpoints()
		return false, false, nil

	case "stop":
		if s.engine.State() == debugger.StateIdle {
			return false, false, fmt.Errorf("nothing to stop")
		}
		s.engine.Stop()
		return true, false, nil

	case "q", "quit", "exit":
		return false, true, nil

	case "h", "help", "?":
		s.printHelp()
		return false, false, nil

	default:
		return false, false, fmt.Errorf("unknown command %q (type 'help' for commands)", command)
	}
}

func (s *Shell) printPause(data debugger.PauseData) {
	fmt.Fprintln(s.output, "─────────────────────────────────────────────")
	fmt.Fprintf(s.output, "Paused at line %d, column %d (%s)\n", data.Line, data.Column, data.Reason)
	if data.BreakpointID != "" {
		fmt.Fprintf(s.output, "  breakpoint %s\n", shortID(data.BreakpointID))
	}
	if data.Exception != "" {
		fmt.Fprintf(s.output, "  exception: %s\n", data.Exception)
	}
	printFrames(s.output, data.Frames)
	fmt.Fprintln(s.output, "─────────────────────────────────────────────")
}

func (s *Shell) printCompletion(data debugger.CompletionData) {
	if !data.Success {
		fmt.Fprintf(s.output, "✗ Macro failed: %v\n", data.Err)
		return
	}
	fmt.Fprintln(s.output, "✓ Macro completed")
	if data.ReturnValue != nil {
		fmt.Fprintf(s.output, "  return value: %v\n", data.ReturnValue)
	}
	if data.Extract != "" {
		fmt.Fprintf(s.output, "  extract: %s\n", data.Extract)
	}
}

func (s *Shell) printStack() {
	frames := s.engine.CallStack()
	if len(frames) == 0 {
		fmt.Fprintln(s.output, "No active run")
		return
	}
	printFrames(s.output, frames)
}

// printFrames renders frames innermost first, the way a user reads a trace.
func printFrames(w io.Writer, frames []debugger.FrameSummary) {
	for i := len(frames) - 1; i >= 0; i-- {
		frame := frames[i]
		fmt.Fprintf(w, "  #%d %s (line %d, column %d)\n", frame.ID, frame.FunctionName, frame.Line, frame.Column)
	}
}

// printVariables prints the variables of the given frame (default: the
// executing frame), indenting expanded children.
func (s *Shell) printVariables(arg string) error {
	frameID, err := s.resolveFrameID(arg)
	if err != nil {
		return err
	}

	variables, err := s.engine.GetVariables(frameID)
	if err != nil {
		return err
	}
	if len(variables) == 0 {
		fmt.Fprintln(s.output, "No variables in scope")
		return nil
	}
	for _, variable := range variables {
		s.printVariable(variable, 1)
	}
	return nil
}

func (s *Shell) printVariable(v debugger.VariableValue, indent int) {
	fmt.Fprintf(s.output, "%s%s = %s (%s)\n", strings.Repeat("  ", indent), v.Name, v.Value, v.Type)
	for _, child := range v.Children {
		s.printVariable(child, indent+1)
	}
}

func (s *Shell) evaluate(expr string) error {
	frameID, err := s.resolveFrameID("")
	if err != nil {
		return err
	}

	value, err := s.engine.Evaluate(expr, frameID)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.output, "%s = %s (%s)\n", expr, value.Value, value.Type)
	return nil
}

// resolveFrameID parses an explicit frame id or falls back to the executing
// frame.
func (s *Shell) resolveFrameID(arg string) (int, error) {
	if arg != "" {
		frameID, err := strconv.Atoi(arg)
		if err != nil {
			return 0, fmt.Errorf("frame id %q is not a number", arg)
		}
		return frameID, nil
	}

	frames := s.engine.CallStack()
	if len(frames) == 0 {
		return 0, fmt.Errorf("no active run")
	}
	return frames[len(frames)-1].ID, nil
}

func (s *Shell) addBreakpoint(raw string) error {
	spec, err := parseBreakSpec(raw)
	if err != nil {
		return err
	}

	bp, err := s.engine.AddBreakpoint(spec.line, spec.options()...)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.output, "Breakpoint %s at line %d\n", shortID(bp.ID), bp.Line)
	if loaded := s.engine.Loaded(); loaded != nil && !slices.Contains(loaded.EligibleLines, spec.line) {
		fmt.Fprintf(s.output, "Note: line %d has no executable statement\n", spec.line)
	}
	return nil
}

func (s *Shell) deleteBreakpoint(prefix string) error {
	id, err := s.resolveBreakpointID(prefix)
	if err != nil {
		return err
	}
	if err := s.engine.RemoveBreakpoint(id); err != nil {
		return err
	}
	fmt.Fprintf(s.output, "Deleted breakpoint %s\n", shortID(id))
	return nil
}

// resolveBreakpointID accepts a full breakpoint id or a unique prefix.
func (s *Shell) resolveBreakpointID(prefix string) (string, error) {
	var match string
	for _, bp := range s.engine.Breakpoints() {
		if strings.HasPrefix(bp.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("breakpoint id %q is ambiguous", prefix)
			}
			match = bp.ID
		}
	}
	if match == "" {
		return "", &errors.NotFoundError{Resource: "breakpoint", ID: prefix}
	}
	return match, nil
}

func (s *Shell) printBreakpoints() {
	breakpoints := s.engine.Breakpoints()
	if len(breakpoints) == 0 {
		fmt.Fprintln(s.output, "No breakpoints set")
		return
	}
	for _, bp := range breakpoints {
		position := fmt.Sprintf("line %d", bp.Line)
		if bp.Column > 0 {
			position = fmt.Sprintf("line %d:%d", bp.Line, bp.Column)
		}
		state := "enabled"
		if !bp.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(s.output, "  %s  %-12s %s  hits=%d", shortID(bp.ID), position, state, bp.HitCount)
		if bp.Condition != "" {
			fmt.Fprintf(s.output, "  if %s", bp.Condition)
		}
		if bp.LogMessage != "" {
			fmt.Fprintf(s.output, "  log=%q", bp.LogMessage)
		}
		fmt.Fprintln(s.output)
	}
}

func (s *Shell) printHelp() {
	help := `
Debugger commands:
  continue, c        Resume until the next breakpoint or completion
  next, n, step      Step over: next statement, skipping called functions
  into               Step into: next statement, entering called functions
  out                Step out: run until the current function returns
  stack              Show the call stack
  vars [frame]       Show variables of a frame (default: executing frame)
  eval <expr>        Evaluate an expression in the executing frame
  break <spec>, b    Add a breakpoint: line[:column][?condition]
  delete <id>, d     Delete a breakpoint by id or unique id prefix
  breakpoints, bp    List breakpoints
  stop               Stop the current run
  quit, q            Stop and leave the debugger
  help, h, ?         Show this help

Press Ctrl+C while the macro runs to pause at the next statement.
`
	fmt.Fprintln(s.output, help)
}

// shortID trims a uuid to its first group for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
