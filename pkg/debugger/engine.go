// Package debugger implements the step-through debug engine for macro
// programs. It instruments macro source through pkg/instrument, executes it
// on an embedded JavaScript runtime, consults the breakpoint ledger at every
// instrumented statement, and reports lifecycle changes through an event
// emitter.
//
// A paused program is a hook invocation blocked on a resume channel inside
// the runtime's goroutine, so at most one suspension exists at a time.
package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/breakpoint"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/expression"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/instrument"
)

// State is the engine's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStepping State = "stepping"
)

// stepMode records which step operation is in flight while stepping.
type stepMode int

const (
	stepNone stepMode = iota
	stepOver
	stepInto
	stepOut
)

// Inspection limits applied when no option overrides them.
const (
	DefaultMaxVariableDepth = 3
	DefaultMaxValueLength   = 1000
)

// mainFrameName is the synthetic frame that owns top-level code.
const mainFrameName = "main"

// macroFileName names the script in runtime stack traces.
const macroFileName = "macro.js"

// interruptStop is handed to the runtime interrupt when the run context
// ends.
const interruptStop = "debugger stopped"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the base logger. Engine components tag themselves onto it.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.baseLogger = logger
	}
}

// WithReplayHost connects the engine to a macro-replay host.
func WithReplayHost(host ReplayHost) Option {
	return func(e *Engine) {
		e.host = host
	}
}

// WithPauseOnException makes uncaught exceptions pause the run before it
// completes as a failure.
func WithPauseOnException(enabled bool) Option {
	return func(e *Engine) {
		e.pauseOnException = enabled
	}
}

// WithMaxVariableDepth bounds how many levels of Children GetVariables
// populates for compound values.
func WithMaxVariableDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithMaxValueLength bounds the display length of rendered values. Zero
// lifts the bound; negative values are ignored.
func WithMaxValueLength(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxValueLen = n
		}
	}
}

// WithFunctionHooks toggles function entry/exit instrumentation. Disabling
// it removes per-call frames; only the synthetic main frame remains.
func WithFunctionHooks(enabled bool) Option {
	return func(e *Engine) {
		e.functionHooks = enabled
	}
}

// Engine is the step-through debugger for macro programs.
//
// All exported methods are safe for concurrent use. Execution happens on an
// engine-owned goroutine per run; controller goroutines drive it through
// Run, Pause, the step calls, and Stop.
type Engine struct {
	baseLogger *slog.Logger
	logger     *slog.Logger
	events     *EventEmitter
	ledger     *breakpoint.Ledger
	eval       *expression.Evaluator
	ins        *instrument.Instrumenter
	host       ReplayHost

	pauseOnException bool
	maxDepth         int
	maxValueLen      int
	functionHooks    bool

	mu     sync.Mutex
	state  State
	loaded *instrument.Result
	prog   *goja.Program

	// Per-run state. runGen increments on every start; hooks bound to an
	// older generation become no-ops the moment a new run begins.
	runID  string
	runGen uint64
	rt     *goja.Runtime
	runCtx context.Context

	// Session state, reset by LoadCode. globals is aliased by globalScope
	// and by the main frame's locals, so it is cleared in place, never
	// replaced.
	globals     map[string]any
	globalScope *Scope
	vars        map[string]string
	lastExtract string
	lastError   string

	// Execution position and call stack, maintained by the hooks.
	stack       []*StackFrame
	nextFrameID int
	lastLine    int
	lastCol     int

	// Suspension and control flags. resumeCh is one-slot so a releaser
	// never blocks, even when the suspension woke through context
	// cancellation instead.
	resumeCh     chan struct{}
	pauseReq     bool
	stopReq      bool
	stopNotified bool
	stepMode     stepMode
	stepDepth    int

	// Events queued while mu is held, emitted after unlock so listeners
	// can call back into the engine.
	pending []Event
}

// New creates an idle engine with no code loaded.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxDepth:      DefaultMaxVariableDepth,
		maxValueLen:   DefaultMaxValueLength,
		functionHooks: true,
		state:         StateIdle,
		globals:       make(map[string]any),
		vars:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.baseLogger == nil {
		e.baseLogger = slog.Default()
	}
	e.logger = log.WithComponent(e.baseLogger, "engine")
	e.globalScope = &Scope{Name: scopeGlobal, Variables: e.globals}
	e.events = NewEventEmitter(e.logger)
	e.eval = expression.New(expression.WithLogger(e.logger))
	e.ledger = breakpoint.NewLedger(
		breakpoint.WithLogger(e.baseLogger),
		breakpoint.WithLogpointHandler(e.recordLogpoint),
	)
	e.ins = instrument.New(
		instrument.WithLogger(e.baseLogger),
		instrument.WithFunctionHooks(e.functionHooks),
	)
	return e
}

// On registers a listener for a debugger event type.
func (e *Engine) On(eventType EventType, listener EventListener) {
	e.events.On(eventType, listener)
}

// Off removes all listeners for an event type.
func (e *Engine) Off(eventType EventType) {
	e.events.Off(eventType)
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RunID returns the id of the current or most recent run, or "" before the
// first run.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Loaded returns the instrumentation result of the currently loaded code, or
// nil when nothing is loaded.
func (e *Engine) Loaded() *instrument.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// CallStack returns a snapshot of the live frames, outermost first, the
// executing frame last. Empty while idle.
func (e *Engine) CallStack() []FrameSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return summarize(e.stack)
}

// LoadCode instruments macro source and stages it for the next run, then
// emits codeLoaded. Only legal while idle. Parse failures come back as
// *errors.SyntaxError values.
func (e *Engine) LoadCode(source string) (*instrument.Result, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		err := &errors.StateError{Op: "load code", State: string(e.state)}
		e.mu.Unlock()
		return nil, err
	}

	res, err := e.ins.Instrument(source)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	prog, err := goja.Compile(macroFileName, res.Source, false)
	if err != nil {
		// The original parsed, so a compile failure here means the
		// splicer produced bad output; report it, don't panic.
		e.mu.Unlock()
		return nil, &errors.SyntaxError{Message: err.Error()}
	}

	e.loaded = res
	e.prog = prog
	e.resetSessionLocked()
	e.eval.ClearCache()
	e.mu.Unlock()

	e.events.Emit(Event{Type: EventCodeLoaded, Data: CodeLoadedData{
		EligibleLines: res.EligibleLines,
		Functions:     res.Functions,
	}})
	e.logger.Info("code loaded",
		"bytes", len(source),
		"points", len(res.Points),
		"functions", len(res.Functions))
	return res, nil
}

// Run starts execution from idle, or resumes a paused run. From idle it
// emits started and executes the loaded program on a fresh runtime; the
// given context governs the whole run, and cancelling it stops the run.
// While paused, Run releases the suspension and the context passed at start
// keeps governing the run.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.Lock()
	switch e.state {
	case StatePaused:
		e.state = StateRunning
		e.stepMode = stepNone
		e.pauseReq = false
		e.releaseLocked()
		e.mu.Unlock()
		return nil
	case StateRunning, StateStepping:
		err := &errors.StateError{Op: "run", State: string(e.state)}
		e.mu.Unlock()
		return err
	}

	if e.prog == nil {
		e.mu.Unlock()
		return &errors.ValidationError{
			Field:      "source",
			Message:    "no code loaded",
			Suggestion: "call LoadCode first",
		}
	}

	e.runGen++
	gen := e.runGen
	e.runID = uuid.NewString()
	runID := e.runID
	e.runCtx = ctx
	e.stopReq = false
	e.stopNotified = false
	e.pauseReq = false
	e.stepMode = stepNone
	e.lastExtract = ""
	e.lastError = ""
	e.lastLine = 0
	e.lastCol = 0
	e.ledger.ResetHitCounts()

	// The main frame's locals are the global scope table itself, so
	// top-level assignments surface as globals.
	main := &StackFrame{
		ID:           0,
		FunctionName: mainFrameName,
		Locals:       e.globals,
		Scopes:       []*Scope{e.globalScope},
	}
	e.stack = []*StackFrame{main}
	e.nextFrameID = 1

	rt := goja.New()
	if err := e.bindRuntime(rt, gen); err != nil {
		e.stack = nil
		e.mu.Unlock()
		return errors.Wrap(err, "binding runtime")
	}
	e.rt = rt
	e.state = StateRunning
	prog := e.prog
	e.mu.Unlock()

	e.events.Emit(Event{Type: EventStarted, RunID: runID, Data: StartedData{RunID: runID}})
	e.logger.Info("run started", log.KeyRunID, runID)

	go e.execute(ctx, rt, prog, gen, runID)
	return nil
}

// Pause requests a pause; the next instrumented statement honors it with
// reason debugger. Outside an active run this is a silent no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state == StateRunning || e.state == StateStepping {
		e.pauseReq = true
	}
	e.mu.Unlock()
}

// StepOver resumes until the next statement at the current stack depth or
// shallower, so calls on the current line run to completion.
func (e *Engine) StepOver() { e.step(stepOver) }

// StepInto resumes until the next statement anywhere, entering calls.
func (e *Engine) StepInto() { e.step(stepInto) }

// StepOut resumes until the current function has returned to its caller.
func (e *Engine) StepOut() { e.step(stepOut) }

// step starts a step operation. A silent no-op unless paused.
func (e *Engine) step(mode stepMode) {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return
	}
	e.state = StateStepping
	e.stepMode = mode
	e.stepDepth = len(e.stack)
	e.releaseLocked()
	e.mu.Unlock()
}

// Stop ends the session: any suspension is released, the engine reports
// idle immediately, and remaining hooks become no-ops while the program
// winds down inside the runtime. Exactly one stopped event is emitted; no
// completed event follows a stop.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return
	}
	e.stopReq = true
	e.state = StateIdle
	runID := e.runID
	if !e.stopNotified {
		e.stopNotified = true
		e.pending = append(e.pending, Event{Type: EventStopped, RunID: runID, Data: StoppedData{RunID: runID}})
	}
	e.releaseLocked()
	e.drainAndUnlock()
	e.logger.Info("stop requested", log.KeyRunID, runID)
}

// execute runs the compiled program to completion. A watchdog interrupts
// the runtime when the run context ends so a cancelled context cannot leave
// this goroutine spinning inside macro code.
func (e *Engine) execute(ctx context.Context, rt *goja.Runtime, prog *goja.Program, gen uint64, runID string) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rt.Interrupt(interruptStop)
		case <-done:
		}
	}()

	value, err := e.runProgram(rt, prog)

	e.mu.Lock()
	if gen != e.runGen {
		// A newer run superseded this one; nothing left to report.
		e.mu.Unlock()
		return
	}

	stopped := e.stopReq
	var interruptErr *goja.InterruptedError
	if !stopped && errors.As(err, &interruptErr) {
		stopped = true
	}
	if stopped {
		e.finishRunLocked()
		if !e.stopNotified {
			e.stopNotified = true
			e.pending = append(e.pending, Event{Type: EventStopped, RunID: runID, Data: StoppedData{RunID: runID}})
		}
		e.drainAndUnlock()
		e.logger.Info("run stopped", log.KeyRunID, runID)
		return
	}

	if err != nil {
		e.completeFailureLocked(gen, runID, err)
		return
	}

	e.finishRunLocked()
	data := CompletionData{Success: true, Extract: e.lastExtractLocked()}
	if value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
		data.ReturnValue = value.Export()
	}
	e.pending = append(e.pending, Event{Type: EventCompleted, RunID: runID, Data: data})
	e.drainAndUnlock()
	e.logger.Info("run completed", log.KeyRunID, runID)
}

// runProgram isolates the runtime call so a runtime panic surfaces as an
// error instead of crossing the API boundary.
func (e *Engine) runProgram(rt *goja.Runtime, prog *goja.Program) (value goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("macro runtime panic: %v", r)
		}
	}()
	return rt.RunProgram(prog)
}

// completeFailureLocked reports an uncaught exception: with
// pause-on-exception enabled the run first pauses at the last known
// position, then completes as a failure carrying an ExecutionError. Called
// with mu held; mu is released on return.
func (e *Engine) completeFailureLocked(gen uint64, runID string, runErr error) {
	line, column := e.lastLine, e.lastCol
	message, thrown := describeThrown(runErr)
	e.lastError = message

	if e.pauseOnException {
		e.pauseLocked(ReasonException, line, column, "", message)

		e.mu.Lock()
		if gen != e.runGen {
			e.mu.Unlock()
			return
		}
		if e.stopReq {
			// Stop already emitted stopped and forced idle.
			e.finishRunLocked()
			e.drainAndUnlock()
			return
		}
	}

	execErr := &errors.ExecutionError{
		Message: message,
		Line:    line,
		Column:  column,
		Value:   thrown,
		Cause:   runErr,
	}
	e.finishRunLocked()
	e.pending = append(e.pending, Event{
		Type:  EventCompleted,
		RunID: runID,
		Data:  CompletionData{Success: false, Err: execErr, Extract: e.lastExtractLocked()},
	})
	e.drainAndUnlock()
	e.logger.Warn("run failed", log.KeyRunID, runID, log.KeyLine, line, log.Err(execErr))
}

// describeThrown extracts a display message and the thrown value from a
// runtime error.
func describeThrown(err error) (string, any) {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if value := exc.Value(); value != nil {
			return value.String(), value.Export()
		}
		return exc.Error(), nil
	}
	return err.Error(), nil
}

// releaseLocked wakes the suspended hook, if any.
func (e *Engine) releaseLocked() {
	if e.resumeCh == nil {
		return
	}
	e.resumeCh <- struct{}{}
	e.resumeCh = nil
}

// drainAndUnlock emits queued events after releasing the mutex. Listeners
// may call back into the engine, so nothing is emitted while locked.
func (e *Engine) drainAndUnlock() {
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, ev := range pending {
		e.events.Emit(ev)
	}
}

// finishRunLocked releases per-run resources and forces idle. The runtime
// and its goroutine state become garbage once the run goroutine returns.
func (e *Engine) finishRunLocked() {
	e.state = StateIdle
	e.rt = nil
	e.runCtx = nil
	e.stack = nil
	e.resumeCh = nil
	e.stepMode = stepNone
	e.pauseReq = false
}

// resetSessionLocked wipes per-session state when new code is loaded. The
// globals map is cleared in place because the global scope and the main
// frame alias it.
func (e *Engine) resetSessionLocked() {
	clear(e.globals)
	e.vars = make(map[string]string)
	e.stack = nil
	e.nextFrameID = 0
	e.lastExtract = ""
	e.lastError = ""
	e.lastLine = 0
	e.lastCol = 0
}

func (e *Engine) frameByIDLocked(id int) *StackFrame {
	for _, frame := range e.stack {
		if frame.ID == id {
			return frame
		}
	}
	return nil
}

// topFrameLocked returns the executing frame. The stack always holds at
// least the main frame while a run is live, and hooks only fire during a
// live run.
func (e *Engine) topFrameLocked() *StackFrame {
	return e.stack[len(e.stack)-1]
}
