package debugger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/instrument"
)

// EventType identifies a debugger event.
type EventType string

const (
	// EventBreakpointAdded is emitted when a breakpoint is registered.
	EventBreakpointAdded EventType = "breakpointAdded"

	// EventBreakpointRemoved is emitted when a breakpoint is removed.
	EventBreakpointRemoved EventType = "breakpointRemoved"

	// EventBreakpointUpdated is emitted when a breakpoint is patched.
	EventBreakpointUpdated EventType = "breakpointUpdated"

	// EventAllBreakpointsCleared is emitted when the ledger is emptied.
	EventAllBreakpointsCleared EventType = "allBreakpointsCleared"

	// EventCodeLoaded is emitted after a macro is instrumented and stored.
	EventCodeLoaded EventType = "codeLoaded"

	// EventStarted is emitted when a run begins from idle.
	EventStarted EventType = "started"

	// EventCompleted is emitted when a run finishes, successfully or not.
	// It is suppressed when the run was stopped.
	EventCompleted EventType = "completed"

	// EventPaused is emitted after execution suspends.
	EventPaused EventType = "paused"

	// EventStopped is emitted when a run is stopped by Stop or context
	// cancellation.
	EventStopped EventType = "stopped"

	// EventLogpoint is emitted when a logpoint breakpoint qualifies; the
	// run does not pause.
	EventLogpoint EventType = "logpoint"

	// EventPlayRequested is emitted when macro code calls iimPlay and no
	// replay host is configured.
	EventPlayRequested EventType = "playRequested"
)

// PauseReason explains why execution suspended.
type PauseReason string

const (
	ReasonBreakpoint PauseReason = "breakpoint"
	ReasonStep       PauseReason = "step"
	ReasonException  PauseReason = "exception"
	ReasonDebugger   PauseReason = "debugger"
)

// Event is a debugger event delivered to listeners.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// CodeLoadedData accompanies EventCodeLoaded.
type CodeLoadedData struct {
	EligibleLines []int                     `json:"eligible_lines"`
	Functions     []instrument.FunctionInfo `json:"functions"`
}

// StartedData accompanies EventStarted.
type StartedData struct {
	RunID string `json:"run_id"`
}

// PauseData accompanies EventPaused.
type PauseData struct {
	Reason       PauseReason    `json:"reason"`
	Line         int            `json:"line"`
	Column       int            `json:"column"`
	BreakpointID string         `json:"breakpoint_id,omitempty"`
	Exception    string         `json:"exception,omitempty"`
	Frames       []FrameSummary `json:"frames"`
}

// CompletionData accompanies EventCompleted.
type CompletionData struct {
	Success     bool   `json:"success"`
	ReturnValue any    `json:"return_value,omitempty"`
	Err         error  `json:"-"`
	Extract     string `json:"extract,omitempty"`
}

// StoppedData accompanies EventStopped.
type StoppedData struct {
	RunID string `json:"run_id"`
}

// LogpointData accompanies EventLogpoint.
type LogpointData struct {
	BreakpointID string `json:"breakpoint_id"`
	Line         int    `json:"line"`
	Message      string `json:"message"`
}

// PlayData accompanies EventPlayRequested.
type PlayData struct {
	Macro string `json:"macro"`
}

// EventListener handles a debugger event. Returned errors are logged and do
// not affect other listeners.
type EventListener func(event Event) error

// EventEmitter dispatches debugger events synchronously, in registration
// order. Listener panics are recovered and logged so a misbehaving listener
// cannot take the run down.
type EventEmitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
	logger    *slog.Logger
}

// NewEventEmitter creates an emitter.
func NewEventEmitter(logger *slog.Logger) *EventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventEmitter{
		listeners: make(map[EventType][]EventListener),
		logger:    logger,
	}
}

// On registers a listener for the event type.
func (e *EventEmitter) On(eventType EventType, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// Off removes all listeners for the event type.
func (e *EventEmitter) Off(eventType EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.listeners, eventType)
}

// Emit dispatches an event to all listeners registered for its type.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	listeners := make([]EventListener, len(e.listeners[event.Type]))
	copy(listeners, e.listeners[event.Type])
	e.mu.RUnlock()

	for _, listener := range listeners {
		e.dispatch(listener, event)
	}
}

func (e *EventEmitter) dispatch(listener EventListener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				log.KeyEvent, string(event.Type),
				"panic", r)
		}
	}()
	if err := listener(event); err != nil {
		e.logger.Warn("event listener failed",
			log.KeyEvent, string(event.Type),
			log.Err(err))
	}
}

// ListenerCount returns the number of listeners for a given event type.
func (e *EventEmitter) ListenerCount(eventType EventType) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.listeners[eventType])
}

// RemoveAllListeners removes all listeners for all event types.
func (e *EventEmitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = make(map[EventType][]EventListener)
}
