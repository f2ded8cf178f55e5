// Package breakpoint implements the debugger's breakpoint ledger: an
// in-memory store of line breakpoints with conditions, hit thresholds, and
// logpoints, plus the hit-decision logic the engine consults on every
// instrumented statement.
//
// The ledger is not safe for unsynchronized concurrent use; the debug engine
// serializes all access to it.
package breakpoint

import (
	"encoding/json"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Breakpoint is a single registered breakpoint. Line is 1-based; Column 0
// means "any column on the line". A non-empty LogMessage turns the
// breakpoint into a logpoint: qualifying hits emit a message instead of
// pausing.
type Breakpoint struct {
	ID           string `json:"id"`
	Line         int    `json:"line"`
	Column       int    `json:"column,omitempty"`
	Condition    string `json:"condition,omitempty"`
	HitThreshold int    `json:"hitThreshold,omitempty"`
	LogMessage   string `json:"logMessage,omitempty"`
	Enabled      bool   `json:"enabled"`
	HitCount     int    `json:"hitCount"`
}

// clone returns a copy so callers cannot mutate ledger state through
// returned pointers.
func (b *Breakpoint) clone() *Breakpoint {
	c := *b
	return &c
}

// Option configures a breakpoint at Add time.
type Option func(*Breakpoint)

// WithColumn restricts the breakpoint to a specific 1-based column.
func WithColumn(column int) Option {
	return func(b *Breakpoint) {
		b.Column = column
	}
}

// WithCondition attaches a condition expression; the breakpoint only
// qualifies when the expression evaluates truthy.
func WithCondition(condition string) Option {
	return func(b *Breakpoint) {
		b.Condition = condition
	}
}

// WithHitThreshold makes the breakpoint qualify only from the nth visit
// onward.
func WithHitThreshold(n int) Option {
	return func(b *Breakpoint) {
		b.HitThreshold = n
	}
}

// WithLogMessage turns the breakpoint into a logpoint. Segments wrapped in
// braces ("value is {total}") are evaluated and interpolated on each hit.
func WithLogMessage(message string) Option {
	return func(b *Breakpoint) {
		b.LogMessage = message
	}
}

// Disabled creates the breakpoint in a disabled state.
func Disabled() Option {
	return func(b *Breakpoint) {
		b.Enabled = false
	}
}

func newBreakpoint(line int, opts ...Option) *Breakpoint {
	b := &Breakpoint{
		ID:      uuid.NewString(),
		Line:    line,
		Enabled: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Patch describes a partial update; nil fields are left unchanged.
type Patch struct {
	Column       *int
	Condition    *string
	HitThreshold *int
	LogMessage   *string
	Enabled      *bool
}

func (p Patch) apply(b *Breakpoint) {
	if p.Column != nil {
		b.Column = *p.Column
	}
	if p.Condition != nil {
		b.Condition = *p.Condition
	}
	if p.HitThreshold != nil {
		b.HitThreshold = *p.HitThreshold
	}
	if p.LogMessage != nil {
		b.LogMessage = *p.LogMessage
	}
	if p.Enabled != nil {
		b.Enabled = *p.Enabled
	}
}

// Snapshot is the persisted form of a breakpoint: plain field values with no
// id and no hit count. Loading a snapshot produces a fresh breakpoint with a
// new id. The yaml tags let session config files list breakpoints directly.
type Snapshot struct {
	Line         int    `json:"line" yaml:"line"`
	Column       int    `json:"column,omitempty" yaml:"column,omitempty"`
	Condition    string `json:"condition,omitempty" yaml:"condition,omitempty"`
	HitThreshold int    `json:"hitThreshold,omitempty" yaml:"hit_threshold,omitempty"`
	LogMessage   string `json:"logMessage,omitempty" yaml:"log_message,omitempty"`
	Enabled      bool   `json:"enabled" yaml:"enabled"`
}

// UnmarshalYAML decodes a snapshot, defaulting Enabled to true so a config
// entry that only names a line produces a live breakpoint.
func (s *Snapshot) UnmarshalYAML(value *yaml.Node) error {
	type plain Snapshot
	out := plain{Enabled: true}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*s = Snapshot(out)
	return nil
}

// MarshalSnapshots renders snapshots as indented JSON, the on-disk
// persistence format.
func MarshalSnapshots(snapshots []Snapshot) ([]byte, error) {
	return json.MarshalIndent(snapshots, "", "  ")
}

// UnmarshalSnapshots parses the on-disk persistence format.
func UnmarshalSnapshots(data []byte) ([]Snapshot, error) {
	var snapshots []Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// Hit is the outcome of a ledger check that found a qualifying breakpoint.
// Paused is false for logpoints, which carry the rendered message instead.
type Hit struct {
	Breakpoint *Breakpoint
	Paused     bool
	LogMessage string
}

// EvalFunc evaluates an expression against the debugger's current execution
// context and returns its value. The ledger applies truthiness to condition
// results and string formatting to logpoint segments.
type EvalFunc func(expression string) (interface{}, error)
