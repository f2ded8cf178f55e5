package debugger

// Scope chain names, innermost first in StackFrame.Scopes.
const (
	scopeLocal  = "local"
	scopeGlobal = "global"
)

// StackFrame tracks one live function activation. The engine owns frames and
// mutates them as hooks report positions; callers observe them through
// FrameSummary snapshots, GetVariables, and Evaluate.
type StackFrame struct {
	ID           int
	FunctionName string
	Line         int
	Column       int

	// Locals holds the union of the hook captures seen so far in this
	// frame. For the synthetic main frame it is the engine's global scope
	// table itself, so top-level assignments surface as globals.
	Locals map[string]any

	// Scopes is the frame's scope chain, innermost first. The last entry
	// is the shared global scope.
	Scopes []*Scope
}

// Scope is one named variable table in a frame's scope chain.
type Scope struct {
	Name      string         `json:"name"`
	Variables map[string]any `json:"variables"`
}

// FrameSummary is the caller-facing snapshot of a stack frame.
type FrameSummary struct {
	ID           int    `json:"id"`
	FunctionName string `json:"functionName"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
}

func (f *StackFrame) summary() FrameSummary {
	return FrameSummary{
		ID:           f.ID,
		FunctionName: f.FunctionName,
		Line:         f.Line,
		Column:       f.Column,
	}
}

// summarize converts live frames to summaries, outermost first.
func summarize(frames []*StackFrame) []FrameSummary {
	out := make([]FrameSummary, len(frames))
	for i, f := range frames {
		out[i] = f.summary()
	}
	return out
}
