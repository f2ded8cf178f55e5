package debugger

import (
	"github.com/dop251/goja"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/breakpoint"
)

// maxCallStackSize caps macro recursion. Overflow surfaces as a runtime
// exception instead of exhausting the Go stack.
const maxCallStackSize = 2048

// bindRuntime installs the instrumentation hooks and the macro-replay
// globals into a fresh runtime. Every hook closure carries the run's
// generation so hooks from a superseded run are no-ops.
func (e *Engine) bindRuntime(rt *goja.Runtime, gen uint64) error {
	rt.SetMaxCallStackSize(maxCallStackSize)

	hooks := e.ins.Hooks()

	callbacks := map[string]func(goja.FunctionCall) goja.Value{
		hooks.Statement: func(call goja.FunctionCall) goja.Value {
			e.onStatement(gen, call, false)
			return goja.Undefined()
		},
		hooks.Break: func(call goja.FunctionCall) goja.Value {
			e.onStatement(gen, call, true)
			return goja.Undefined()
		},
		hooks.Enter: func(call goja.FunctionCall) goja.Value {
			e.onEnter(gen, call)
			return goja.Undefined()
		},
		hooks.Exit: func(call goja.FunctionCall) goja.Value {
			e.onExit(gen)
			return goja.Undefined()
		},
		"iimPlay": func(call goja.FunctionCall) goja.Value {
			return rt.ToValue(e.Play(call.Argument(0).String()))
		},
		"iimSet": func(call goja.FunctionCall) goja.Value {
			return rt.ToValue(e.Set(call.Argument(0).String(), call.Argument(1).String()))
		},
		"iimGetLastExtract": func(call goja.FunctionCall) goja.Value {
			return rt.ToValue(e.GetLastExtract())
		},
		"iimGetLastError": func(call goja.FunctionCall) goja.Value {
			return rt.ToValue(e.GetLastError())
		},
	}
	for name, fn := range callbacks {
		if err := rt.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// onStatement handles the per-statement hook and the debugger-point hook on
// the run goroutine. It updates the executing frame's position and locals,
// then decides whether to pause: an explicit pause request and a debugger
// point pause with reason debugger, then qualified breakpoints, then a met
// step condition.
func (e *Engine) onStatement(gen uint64, call goja.FunctionCall, debuggerPoint bool) {
	line := int(call.Argument(0).ToInteger())
	column := int(call.Argument(1).ToInteger())
	locals := exportLocals(call.Argument(2))

	e.mu.Lock()
	if gen != e.runGen || e.stopReq {
		e.mu.Unlock()
		return
	}

	frame := e.topFrameLocked()
	frame.Line = line
	frame.Column = column
	e.lastLine = line
	e.lastCol = column
	mergeLocals(frame.Locals, locals)

	log.Trace(e.logger, "statement", log.KeyLine, line, log.KeyColumn, column)

	var (
		pause  bool
		reason PauseReason
		bpID   string
	)
	switch {
	case debuggerPoint:
		pause, reason = true, ReasonDebugger
	case e.pauseReq:
		pause, reason = true, ReasonDebugger
	default:
		if e.ledger.HasLine(line) {
			env := e.evalContextLocked(frame)
			hit := e.ledger.Check(line, column, func(condition string) (any, error) {
				return e.eval.Evaluate(condition, env)
			})
			if hit != nil && hit.Paused {
				pause, reason, bpID = true, ReasonBreakpoint, hit.Breakpoint.ID
			}
		}
		if !pause && e.stepSatisfiedLocked() {
			pause, reason = true, ReasonStep
		}
	}

	if !pause {
		e.drainAndUnlock()
		return
	}
	e.pauseLocked(reason, line, column, bpID, "")
}

// onEnter pushes a frame for a function the program just entered. No pause
// decision happens here; the first statement hook inside the body follows
// immediately and handles breakpoints and steps, which keeps breakpoint hit
// counters at one increment per visited line.
func (e *Engine) onEnter(gen uint64, call goja.FunctionCall) {
	name := call.Argument(0).String()
	line := int(call.Argument(1).ToInteger())
	column := int(call.Argument(2).ToInteger())
	args := exportLocals(call.Argument(3))

	e.mu.Lock()
	if gen != e.runGen || e.stopReq {
		e.mu.Unlock()
		return
	}

	locals := make(map[string]any, len(args)+4)
	mergeLocals(locals, args)
	frame := &StackFrame{
		ID:           e.nextFrameID,
		FunctionName: name,
		Line:         line,
		Column:       column,
		Locals:       locals,
		Scopes: []*Scope{
			{Name: scopeLocal, Variables: locals},
			e.globalScope,
		},
	}
	e.nextFrameID++
	e.stack = append(e.stack, frame)
	e.lastLine = line
	e.lastCol = column

	log.Trace(e.logger, "enter", "function", name, log.KeyFrame, frame.ID, "depth", len(e.stack))
	e.mu.Unlock()
}

// onExit pops the executing frame. The main frame never pops; exits are
// generated by instrumented function bodies only, so an underflow here
// would mean mismatched instrumentation.
func (e *Engine) onExit(gen uint64) {
	e.mu.Lock()
	if gen != e.runGen || e.stopReq {
		e.mu.Unlock()
		return
	}
	if len(e.stack) > 1 {
		frame := e.stack[len(e.stack)-1]
		e.stack[len(e.stack)-1] = nil
		e.stack = e.stack[:len(e.stack)-1]
		log.Trace(e.logger, "exit", log.KeyFrame, frame.ID, "depth", len(e.stack))
	}
	e.mu.Unlock()
}

// pauseLocked suspends the run goroutine at the current position: it
// records the paused state, emits paused after unlocking, then blocks until
// Run, a step call, or Stop releases the suspension, or the run context
// ends (treated as a stop). Called with mu held; mu is NOT held on return.
func (e *Engine) pauseLocked(reason PauseReason, line, column int, breakpointID, exception string) {
	gen := e.runGen
	runID := e.runID
	ctx := e.runCtx

	e.state = StatePaused
	e.stepMode = stepNone
	e.pauseReq = false

	ch := make(chan struct{}, 1)
	e.resumeCh = ch

	e.pending = append(e.pending, Event{
		Type:  EventPaused,
		RunID: runID,
		Data: PauseData{
			Reason:       reason,
			Line:         line,
			Column:       column,
			BreakpointID: breakpointID,
			Exception:    exception,
			Frames:       summarize(e.stack),
		},
	})
	e.drainAndUnlock()

	e.logger.Info("paused",
		log.KeyRunID, runID,
		log.KeyReason, string(reason),
		log.KeyLine, line,
		log.KeyColumn, column)

	select {
	case <-ch:
		// The releaser already set the next state and emitted its event.
	case <-ctx.Done():
		e.stopFromContext(gen)
	}
}

// stopFromContext converts a context cancellation observed during a
// suspension into a stop. The run goroutine's watchdog interrupts the
// runtime, so whatever the program still had to run unwinds promptly.
func (e *Engine) stopFromContext(gen uint64) {
	e.mu.Lock()
	if gen != e.runGen {
		e.mu.Unlock()
		return
	}
	e.stopReq = true
	e.state = StateIdle
	e.resumeCh = nil
	runID := e.runID
	if !e.stopNotified {
		e.stopNotified = true
		e.pending = append(e.pending, Event{Type: EventStopped, RunID: runID, Data: StoppedData{RunID: runID}})
	}
	e.drainAndUnlock()
	e.logger.Info("run stopped", log.KeyRunID, runID, log.KeyReason, "context cancelled")
}

// stepSatisfiedLocked reports whether the active step completes at the
// current stack depth: Over once the stack is back to the starting depth or
// shallower, Out only once it is shallower, Into at the next statement
// regardless of depth.
func (e *Engine) stepSatisfiedLocked() bool {
	switch e.stepMode {
	case stepInto:
		return true
	case stepOver:
		return len(e.stack) <= e.stepDepth
	case stepOut:
		return len(e.stack) < e.stepDepth
	default:
		return false
	}
}

// evalContextLocked builds the flat name→value environment for expression
// evaluation in a frame: scope-chain names outermost first so locals win,
// plus the integration helpers macro authors use in conditions and logpoint
// messages. The helpers run with mu held, so they use the locked variants.
func (e *Engine) evalContextLocked(frame *StackFrame) map[string]any {
	size := len(frame.Locals) + len(e.globals) + 4
	env := make(map[string]any, size)

	for i := len(frame.Scopes) - 1; i >= 0; i-- {
		for k, v := range frame.Scopes[i].Variables {
			env[k] = v
		}
	}
	for k, v := range frame.Locals {
		env[k] = v
	}

	env["play"] = func(macro string) int { return e.playLocked(macro) }
	env["set"] = func(name, value string) int { return e.setLocked(name, value) }
	env["getLastExtract"] = func() string { return e.lastExtractLocked() }
	env["getLastError"] = func() string { return e.lastErrorLocked() }
	return env
}

// recordLogpoint queues a logpoint event. The ledger invokes this handler
// from Check, which only ever runs with mu held, so the event goes on the
// pending list instead of being emitted here.
func (e *Engine) recordLogpoint(bp *breakpoint.Breakpoint, message string) {
	e.pending = append(e.pending, Event{
		Type:  EventLogpoint,
		RunID: e.runID,
		Data: LogpointData{
			BreakpointID: bp.ID,
			Line:         bp.Line,
			Message:      message,
		},
	})
}

// exportLocals converts a hook's capture object into a Go map. Hooks always
// pass an object literal; anything else yields nil.
func exportLocals(v goja.Value) map[string]any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if m, ok := v.Export().(map[string]any); ok {
		return m
	}
	return nil
}

func mergeLocals(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
