package debugger

import (
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/breakpoint"
)

// AddBreakpoint registers a breakpoint on a 1-based line and emits
// breakpointAdded. Options follow pkg/breakpoint.
func (e *Engine) AddBreakpoint(line int, opts ...breakpoint.Option) (*breakpoint.Breakpoint, error) {
	e.mu.Lock()
	bp, err := e.ledger.Add(line, opts...)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.events.Emit(Event{Type: EventBreakpointAdded, Data: bp})
	return bp, nil
}

// RemoveBreakpoint deletes a breakpoint by id and emits breakpointRemoved.
func (e *Engine) RemoveBreakpoint(id string) error {
	e.mu.Lock()
	err := e.ledger.Remove(id)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.events.Emit(Event{Type: EventBreakpointRemoved, Data: id})
	return nil
}

// UpdateBreakpoint applies a partial patch to a breakpoint and emits
// breakpointUpdated with the updated value.
func (e *Engine) UpdateBreakpoint(id string, patch breakpoint.Patch) (*breakpoint.Breakpoint, error) {
	e.mu.Lock()
	bp, err := e.ledger.Update(id, patch)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.events.Emit(Event{Type: EventBreakpointUpdated, Data: bp})
	return bp, nil
}

// ClearBreakpoints removes every breakpoint and emits allBreakpointsCleared.
func (e *Engine) ClearBreakpoints() {
	e.mu.Lock()
	e.ledger.Clear()
	e.mu.Unlock()
	e.events.Emit(Event{Type: EventAllBreakpointsCleared})
}

// Breakpoints returns all registered breakpoints in insertion order.
func (e *Engine) Breakpoints() []*breakpoint.Breakpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.List()
}

// GetBreakpoint returns a breakpoint by id.
func (e *Engine) GetBreakpoint(id string) (*breakpoint.Breakpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Get(id)
}

// SerializeBreakpoints captures every breakpoint as a persistable snapshot.
func (e *Engine) SerializeBreakpoints() []breakpoint.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Serialize()
}

// LoadBreakpoints replaces all breakpoints with the given snapshots. Each
// snapshot becomes a fresh breakpoint with a new id and a zero hit count.
// Emits allBreakpointsCleared, then breakpointAdded per loaded breakpoint.
func (e *Engine) LoadBreakpoints(snapshots []breakpoint.Snapshot) []*breakpoint.Breakpoint {
	e.mu.Lock()
	loaded := e.ledger.LoadSnapshots(snapshots)
	e.mu.Unlock()

	e.events.Emit(Event{Type: EventAllBreakpointsCleared})
	for _, bp := range loaded {
		e.events.Emit(Event{Type: EventBreakpointAdded, Data: bp})
	}
	return loaded
}
