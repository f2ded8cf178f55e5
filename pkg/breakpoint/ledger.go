package breakpoint

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/expression"
)

// LogpointHandler receives the rendered message each time a logpoint
// qualifies. The engine installs a handler that forwards to its event
// emitter.
type LogpointHandler func(bp *Breakpoint, message string)

// Ledger stores breakpoints and answers hit probes. Breakpoints are kept in
// insertion order, both globally and per line; the order is observable
// through List and decides which breakpoint wins when several share a line.
type Ledger struct {
	order  []*Breakpoint
	byID   map[string]*Breakpoint
	byLine map[int][]*Breakpoint

	logger *slog.Logger
	onLog  LogpointHandler
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLogger sets the ledger's logger.
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = log.WithComponent(logger, "breakpoint")
	}
}

// WithLogpointHandler installs the callback invoked with rendered logpoint
// messages.
func WithLogpointHandler(handler LogpointHandler) LedgerOption {
	return func(l *Ledger) {
		l.onLog = handler
	}
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		byID:   make(map[string]*Breakpoint),
		byLine: make(map[int][]*Breakpoint),
		logger: log.WithComponent(slog.Default(), "breakpoint"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add registers a breakpoint on a 1-based line and returns it.
func (l *Ledger) Add(line int, opts ...Option) (*Breakpoint, error) {
	if line < 1 {
		return nil, &errors.ValidationError{
			Field:      "line",
			Message:    fmt.Sprintf("invalid line %d", line),
			Suggestion: "lines are numbered from 1",
		}
	}

	bp := newBreakpoint(line, opts...)
	l.insert(bp)

	l.logger.Debug("breakpoint added",
		log.KeyBreakpoint, bp.ID, log.KeyLine, bp.Line, log.KeyColumn, bp.Column)
	return bp.clone(), nil
}

func (l *Ledger) insert(bp *Breakpoint) {
	l.order = append(l.order, bp)
	l.byID[bp.ID] = bp
	l.byLine[bp.Line] = append(l.byLine[bp.Line], bp)
}

// Remove deletes a breakpoint by id.
func (l *Ledger) Remove(id string) error {
	bp, ok := l.byID[id]
	if !ok {
		return &errors.NotFoundError{Resource: "breakpoint", ID: id}
	}

	delete(l.byID, id)
	l.order = removeFrom(l.order, bp)

	remaining := removeFrom(l.byLine[bp.Line], bp)
	if len(remaining) == 0 {
		delete(l.byLine, bp.Line)
	} else {
		l.byLine[bp.Line] = remaining
	}

	l.logger.Debug("breakpoint removed", log.KeyBreakpoint, id, log.KeyLine, bp.Line)
	return nil
}

func removeFrom(list []*Breakpoint, bp *Breakpoint) []*Breakpoint {
	for i, candidate := range list {
		if candidate == bp {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Update applies a partial patch to a breakpoint and returns the updated
// value. The breakpoint keeps its position in the per-line order.
func (l *Ledger) Update(id string, patch Patch) (*Breakpoint, error) {
	bp, ok := l.byID[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "breakpoint", ID: id}
	}
	patch.apply(bp)
	return bp.clone(), nil
}

// Get returns a breakpoint by id.
func (l *Ledger) Get(id string) (*Breakpoint, error) {
	bp, ok := l.byID[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "breakpoint", ID: id}
	}
	return bp.clone(), nil
}

// List returns all breakpoints in insertion order.
func (l *Ledger) List() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(l.order))
	for _, bp := range l.order {
		out = append(out, bp.clone())
	}
	return out
}

// ForLine returns the breakpoints registered on a line, in insertion order.
func (l *Ledger) ForLine(line int) []*Breakpoint {
	bps := l.byLine[line]
	out := make([]*Breakpoint, 0, len(bps))
	for _, bp := range bps {
		out = append(out, bp.clone())
	}
	return out
}

// HasLine reports whether any breakpoint is registered on the line. The
// engine uses this as a cheap pre-filter before building an evaluation
// context.
func (l *Ledger) HasLine(line int) bool {
	return len(l.byLine[line]) > 0
}

// Count returns the number of registered breakpoints.
func (l *Ledger) Count() int {
	return len(l.order)
}

// Clear removes every breakpoint.
func (l *Ledger) Clear() {
	l.order = nil
	l.byID = make(map[string]*Breakpoint)
	l.byLine = make(map[int][]*Breakpoint)
	l.logger.Debug("all breakpoints cleared")
}

// ResetHitCounts zeroes every breakpoint's hit counter. The engine calls
// this when a run starts from idle so thresholds count per run.
func (l *Ledger) ResetHitCounts() {
	for _, bp := range l.order {
		bp.HitCount = 0
	}
}

// Check probes the ledger when execution reaches line/column. Breakpoints on
// the line are considered in insertion order:
//
//   - disabled breakpoints are skipped,
//   - a breakpoint bound to a column is skipped when the probe carries a
//     different column (both must be set for the comparison to apply),
//   - the hit counter increments unconditionally once a breakpoint gets this
//     far, regardless of threshold or condition outcome,
//   - a breakpoint below its hit threshold is skipped,
//   - a condition that evaluates falsy or fails to evaluate skips the
//     breakpoint (failures are logged, never propagated),
//   - a logpoint renders its message, notifies the handler, and yields a
//     non-pausing Hit,
//   - anything else yields a pausing Hit.
//
// The first breakpoint to yield a Hit wins; later breakpoints on the line
// are left untouched for this probe. Check returns nil when nothing
// qualifies.
func (l *Ledger) Check(line, column int, eval EvalFunc) *Hit {
	for _, bp := range l.byLine[line] {
		if !bp.Enabled {
			continue
		}
		if bp.Column > 0 && column > 0 && bp.Column != column {
			continue
		}

		bp.HitCount++

		if bp.HitThreshold > 0 && bp.HitCount < bp.HitThreshold {
			continue
		}

		if bp.Condition != "" {
			if eval == nil {
				l.logger.Debug("no evaluator for conditional breakpoint",
					log.KeyBreakpoint, bp.ID, log.KeyLine, line)
				continue
			}
			value, err := eval(bp.Condition)
			if err != nil {
				l.logger.Debug("breakpoint condition failed",
					log.KeyBreakpoint, bp.ID, log.KeyLine, line, log.KeyError, err.Error())
				continue
			}
			if !expression.Truthy(value) {
				continue
			}
		}

		if bp.LogMessage != "" {
			message := renderLogMessage(bp.LogMessage, eval)
			if l.onLog != nil {
				l.onLog(bp.clone(), message)
			}
			l.logger.Debug("logpoint", log.KeyBreakpoint, bp.ID, log.KeyLine, line, "message", message)
			return &Hit{Breakpoint: bp.clone(), Paused: false, LogMessage: message}
		}

		l.logger.Debug("breakpoint hit",
			log.KeyBreakpoint, bp.ID, log.KeyLine, line, "hit_count", bp.HitCount)
		return &Hit{Breakpoint: bp.clone(), Paused: true}
	}
	return nil
}

// renderLogMessage interpolates {expression} segments. A segment that fails
// to evaluate is left in place verbatim so the log line still shows what was
// asked for. Braces do not nest.
func renderLogMessage(message string, eval EvalFunc) string {
	var out strings.Builder
	rest := message
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			out.WriteString(rest)
			return out.String()
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			out.WriteString(rest)
			return out.String()
		}
		closing += open

		out.WriteString(rest[:open])
		segment := rest[open+1 : closing]

		if eval == nil || strings.TrimSpace(segment) == "" {
			out.WriteString(rest[open : closing+1])
		} else if value, err := eval(segment); err != nil {
			out.WriteString(rest[open : closing+1])
		} else {
			fmt.Fprintf(&out, "%v", value)
		}

		rest = rest[closing+1:]
	}
}

// Serialize captures every breakpoint as a Snapshot, in insertion order.
func (l *Ledger) Serialize() []Snapshot {
	out := make([]Snapshot, 0, len(l.order))
	for _, bp := range l.order {
		out = append(out, Snapshot{
			Line:         bp.Line,
			Column:       bp.Column,
			Condition:    bp.Condition,
			HitThreshold: bp.HitThreshold,
			LogMessage:   bp.LogMessage,
			Enabled:      bp.Enabled,
		})
	}
	return out
}

// LoadSnapshots replaces the ledger contents with the given snapshots. All
// existing breakpoints are cleared first; each snapshot becomes a fresh
// breakpoint with a newly generated id and a zero hit count, keeping its
// enabled flag. Snapshots with an invalid line are skipped with a warning.
func (l *Ledger) LoadSnapshots(snapshots []Snapshot) []*Breakpoint {
	l.Clear()

	out := make([]*Breakpoint, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.Line < 1 {
			l.logger.Warn("skipping breakpoint snapshot with invalid line", log.KeyLine, snap.Line)
			continue
		}
		bp := newBreakpoint(snap.Line)
		bp.Column = snap.Column
		bp.Condition = snap.Condition
		bp.HitThreshold = snap.HitThreshold
		bp.LogMessage = snap.LogMessage
		bp.Enabled = snap.Enabled
		l.insert(bp)
		out = append(out, bp.clone())
	}

	l.logger.Debug("breakpoints loaded", "count", len(out))
	return out
}
