// Package instrument rewrites macro source so that execution reports back to
// the debug engine. Every eligible statement and function entry gains a call
// to an injected hook; the rewritten text preserves the original line
// structure, so positions reported by hooks match what the user sees in the
// editor.
package instrument

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

// DefaultHookPrefix is the identifier prefix of the injected globals.
const DefaultHookPrefix = "__dbg"

// PointKind classifies an instrumentation point.
type PointKind string

const (
	// PointStatement marks an eligible statement.
	PointStatement PointKind = "statement"
	// PointEntry marks a function entry.
	PointEntry PointKind = "entry"
	// PointDebugger marks an explicit debugger statement in the source.
	PointDebugger PointKind = "debugger"
)

// InstrumentationPoint records one location where a hook call was spliced
// into the source. Offset is the byte offset into the original text; Line
// and Column are 1-based.
type InstrumentationPoint struct {
	Offset       int       `json:"offset"`
	Line         int       `json:"line"`
	Column       int       `json:"column"`
	Kind         PointKind `json:"kind"`
	FunctionName string    `json:"functionName,omitempty"`
}

// FunctionInfo describes a function found in the source. Name is
// "<anonymous>" for unnamed literals unless a name could be inferred from
// the binding or assignment target. Params lists parameter names in source
// order with destructuring patterns flattened; BodyStart/BodyEnd are the
// half-open byte range of the body (block including braces, or the bare
// expression of an expression-bodied arrow).
type FunctionInfo struct {
	Name      string   `json:"name"`
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	Params    []string `json:"params"`
	BodyStart int      `json:"bodyStart"`
	BodyEnd   int      `json:"bodyEnd"`
}

// HookNames carries the injected global names derived from the hook prefix.
// The engine binds implementations under exactly these names before running
// instrumented code.
type HookNames struct {
	Statement string // func(line, column, locals)
	Enter     string // func(name, line, column, args)
	Exit      string // func()
	Break     string // func(line, column, locals)
}

func hookNamesFor(prefix string) HookNames {
	return HookNames{
		Statement: prefix + "Hook",
		Enter:     prefix + "Enter",
		Exit:      prefix + "Exit",
		Break:     prefix + "Break",
	}
}

// Result is the outcome of instrumenting a macro.
type Result struct {
	// Source is the instrumented text.
	Source string
	// Points lists every splice location, ordered by original offset.
	Points []InstrumentationPoint
	// Functions is the function table, in the order functions were found.
	Functions []FunctionInfo
	// EligibleLines lists the sorted, deduplicated 1-based lines that can
	// host a breakpoint.
	EligibleLines []int
	// LineMap maps instrumented line numbers back to original ones.
	LineMap map[int]int
	// Hooks names the globals the instrumented source calls.
	Hooks HookNames
}

// Instrumenter rewrites macro source. Instances are stateless between calls
// and safe to reuse; they are not safe for concurrent use.
type Instrumenter struct {
	prefix        string
	functionHooks bool
	logger        *slog.Logger
}

// Option configures an Instrumenter.
type Option func(*Instrumenter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instrumenter) {
		i.logger = log.WithComponent(logger, "instrument")
	}
}

// WithFunctionHooks toggles function entry/exit instrumentation. It is on by
// default; without it the engine sees no call-stack detail below the
// synthetic top-level frame.
func WithFunctionHooks(enabled bool) Option {
	return func(i *Instrumenter) {
		i.functionHooks = enabled
	}
}

// WithHookPrefix overrides the identifier prefix of the injected globals.
// The prefix must be a valid identifier prefix; it is the caller's job to
// pick one that cannot collide with names in the macro.
func WithHookPrefix(prefix string) Option {
	return func(i *Instrumenter) {
		i.prefix = prefix
	}
}

// New creates an Instrumenter.
func New(opts ...Option) *Instrumenter {
	i := &Instrumenter{
		prefix:        DefaultHookPrefix,
		functionHooks: true,
		logger:        log.WithComponent(slog.Default(), "instrument"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Hooks returns the injected global names this instrumenter emits.
func (i *Instrumenter) Hooks() HookNames {
	return hookNamesFor(i.prefix)
}

// Validate parses the source and returns a *errors.SyntaxError when it does
// not parse, nil otherwise.
func (i *Instrumenter) Validate(source string) error {
	_, err := parseSource(source)
	return err
}

// Instrument parses the source, collects instrumentation points, and splices
// hook calls into a copy of the text. A parse failure returns a
// *errors.SyntaxError as a value.
func (i *Instrumenter) Instrument(source string) (*Result, error) {
	program, err := parseSource(source)
	if err != nil {
		return nil, err
	}

	ix := newLineIndex(source)
	c := &collector{
		src:           source,
		ix:            ix,
		hooks:         i.Hooks(),
		functionHooks: i.functionHooks,
	}
	c.run(program)

	result := &Result{
		Source:    splice(source, c.edits),
		Points:    c.points,
		Functions: c.functions,
		Hooks:     c.hooks,
	}
	sort.SliceStable(result.Points, func(a, b int) bool {
		return result.Points[a].Offset < result.Points[b].Offset
	})
	result.EligibleLines = eligibleLines(result.Points)
	result.LineMap = buildLineMap(source, result.Source, c.hooks)

	i.logger.Debug("instrumented macro",
		"points", len(result.Points),
		"functions", len(result.Functions),
		"lines", len(result.EligibleLines))
	return result, nil
}

// parseSource wraps the goja parser, converting its error list into the
// module's SyntaxError.
func parseSource(source string) (*ast.Program, error) {
	program, err := parser.ParseFile(nil, "macro.js", source, 0)
	if err == nil {
		return program, nil
	}

	ix := newLineIndex(source)
	if list, ok := err.(parser.ErrorList); ok && len(list) > 0 {
		first := list[0]
		line, column := first.Position.Line, first.Position.Column
		return nil, &errors.SyntaxError{
			Message: first.Message,
			Line:    line,
			Column:  column,
			Offset:  ix.offsetOf(line, column),
		}
	}
	return nil, &errors.SyntaxError{Message: err.Error()}
}

func eligibleLines(points []InstrumentationPoint) []int {
	seen := make(map[int]struct{}, len(points))
	var lines []int
	for _, p := range points {
		if _, ok := seen[p.Line]; ok {
			continue
		}
		seen[p.Line] = struct{}{}
		lines = append(lines, p.Line)
	}
	sort.Ints(lines)
	return lines
}

// edit is a pending text insertion at a byte offset of the original source.
type edit struct {
	offset int
	text   string
}

// splice applies edits in descending offset order so earlier offsets stay
// valid. Edits at the same offset keep their generation order in the output
// (stable sort + reverse application).
func splice(source string, edits []edit) string {
	if len(edits) == 0 {
		return source
	}
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].offset < sorted[b].offset
	})

	var out strings.Builder
	out.Grow(len(source) + totalLen(sorted))

	// Build left-to-right instead of repeatedly reslicing: walk the source
	// once, flushing pending edits as their offsets are reached.
	prev := 0
	for _, e := range sorted {
		out.WriteString(source[prev:e.offset])
		out.WriteString(e.text)
		prev = e.offset
	}
	out.WriteString(source[prev:])
	return out.String()
}

func totalLen(edits []edit) int {
	n := 0
	for _, e := range edits {
		n += len(e.text)
	}
	return n
}

// lineIndex maps byte offsets to 1-based line/column pairs and back.
// Columns count bytes within the line, starting at 1.
type lineIndex struct {
	starts []int
	size   int
}

func newLineIndex(src string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts, size: len(src)}
}

func (ix *lineIndex) position(offset int) (line, column int) {
	n := sort.Search(len(ix.starts), func(i int) bool {
		return ix.starts[i] > offset
	})
	line = n // 1-based: starts[n-1] <= offset < starts[n]
	column = offset - ix.starts[n-1] + 1
	return line, column
}

// offsetOf clamps out-of-range positions to the nearest valid offset on the
// requested line.
func (ix *lineIndex) offsetOf(line, column int) int {
	if line < 1 {
		line = 1
	}
	if line > len(ix.starts) {
		line = len(ix.starts)
	}
	if column < 1 {
		column = 1
	}
	start := ix.starts[line-1]
	end := ix.size
	if line < len(ix.starts) {
		end = ix.starts[line] - 1
	}
	offset := start + column - 1
	if offset > end {
		offset = end
	}
	return offset
}

// hookCall renders a statement or debugger-point hook invocation. Captured
// names are guarded with typeof so a name that is not bound on the current
// path reads as undefined instead of throwing.
func hookCall(name string, line, column int, captures []string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(strconv.Itoa(line))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(column))
	b.WriteString(", ")
	writeCaptureObject(&b, captures)
	b.WriteString("); ")
	return b.String()
}

// enterCall renders a function-entry hook plus the opening of the
// try/finally wrapper.
func enterCall(hooks HookNames, fnName string, line, column int, params []string) string {
	var b strings.Builder
	b.WriteString(hooks.Enter)
	b.WriteByte('(')
	b.WriteString(strconv.Quote(fnName))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(line))
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(column))
	b.WriteString(", ")
	writeCaptureObject(&b, params)
	b.WriteString("); try { ")
	return b.String()
}

func exitWrapper(hooks HookNames) string {
	return fmt.Sprintf(" } finally { %s(); } ", hooks.Exit)
}

func writeCaptureObject(b *strings.Builder, names []string) {
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(`: typeof `)
		b.WriteString(name)
		b.WriteString(` === "undefined" ? void 0 : `)
		b.WriteString(name)
	}
	b.WriteByte('}')
}
