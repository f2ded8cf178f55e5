package debugger

import "strings"

// extractVar receives extraction results; setting it also refreshes the
// engine's last-extract value.
const extractVar = "!EXTRACT"

// statusOK is the macro-replay success status code.
const statusOK = 1

// ReplayHost connects the debugger to the surrounding macro-replay product.
// The engine consumes this interface; the shipped implementations are the
// CLI's local host and test fakes.
//
// Calls may arrive while the engine holds internal locks (for example from
// a breakpoint condition), so implementations must not call back into the
// Engine.
type ReplayHost interface {
	// Play runs a macro and returns its status code; 1 means success.
	Play(macro string) int
	// Set stores a normalized variable assignment.
	Set(name, value string) int
	// LastExtract returns the text captured by the most recent extraction.
	LastExtract() string
	// LastError returns the most recent replay error text.
	LastError() string
}

// NormalizeVarName maps the names macro code passes to iimSet onto canonical
// variable keys: an optional leading "-" marker is stripped, var1 through
// var9 map to !VAR1 through !VAR9 regardless of case, and anything else is
// uppercased and given a "!" prefix when missing.
func NormalizeVarName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "-")
	upper := strings.ToUpper(name)
	if len(upper) == 4 && strings.HasPrefix(upper, "VAR") && upper[3] >= '1' && upper[3] <= '9' {
		return "!" + upper
	}
	if !strings.HasPrefix(upper, "!") {
		return "!" + upper
	}
	return upper
}

// Play runs a macro through the replay host, mirroring iimPlay in macro
// code. Without a host it emits playRequested and reports success so macros
// keep working in isolation.
func (e *Engine) Play(macro string) int {
	if e.host != nil {
		return e.host.Play(macro)
	}

	e.mu.Lock()
	runID := e.runID
	e.mu.Unlock()

	e.events.Emit(Event{Type: EventPlayRequested, RunID: runID, Data: PlayData{Macro: macro}})
	return statusOK
}

// Set stores a variable under its normalized key and forwards the
// assignment to the replay host when one is configured, mirroring iimSet.
func (e *Engine) Set(name, value string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setLocked(name, value)
}

// GetLastExtract returns the most recent extraction result, preferring the
// replay host's value, mirroring iimGetLastExtract.
func (e *Engine) GetLastExtract() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastExtractLocked()
}

// GetLastError returns the most recent replay or execution error text,
// preferring the replay host's value, mirroring iimGetLastError.
func (e *Engine) GetLastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErrorLocked()
}

// Variable reads back a stored variable by any accepted spelling of its
// name.
func (e *Engine) Variable(name string) (string, bool) {
	key := NormalizeVarName(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	value, ok := e.vars[key]
	return value, ok
}

// playLocked is the variant used inside expression contexts, which run with
// mu held. Without a host the playRequested event is queued, not emitted.
func (e *Engine) playLocked(macro string) int {
	if e.host != nil {
		return e.host.Play(macro)
	}
	e.pending = append(e.pending, Event{
		Type:  EventPlayRequested,
		RunID: e.runID,
		Data:  PlayData{Macro: macro},
	})
	return statusOK
}

func (e *Engine) setLocked(name, value string) int {
	key := NormalizeVarName(name)
	e.vars[key] = value
	if key == extractVar {
		e.lastExtract = value
	}
	if e.host != nil {
		return e.host.Set(key, value)
	}
	return statusOK
}

func (e *Engine) lastExtractLocked() string {
	if e.host != nil {
		return e.host.LastExtract()
	}
	return e.lastExtract
}

func (e *Engine) lastErrorLocked() string {
	if e.host != nil {
		return e.host.LastError()
	}
	return e.lastError
}
