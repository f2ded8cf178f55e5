package debugger

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

func TestFormatValueScalars(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		typ   string
		value string
	}{
		{"nil", nil, typeUndefined, "undefined"},
		{"bool", true, typeBoolean, "true"},
		{"string", "hi", typeString, `"hi"`},
		{"int64", int64(42), typeNumber, "42"},
		{"int", 7, typeNumber, "7"},
		{"uint", uint32(9), typeNumber, "9"},
		{"float", 3.5, typeNumber, "3.5"},
		{"integral float", float64(4), typeNumber, "4"},
		{"nan", math.NaN(), typeNumber, "NaN"},
		{"positive infinity", math.Inf(1), typeNumber, "Infinity"},
		{"negative infinity", math.Inf(-1), typeNumber, "-Infinity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatValue("x", tt.in, 3, 100)
			assert.Equal(t, "x", got.Name)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, tt.value, got.Value)
			assert.False(t, got.Expandable)
			assert.Empty(t, got.Children)
		})
	}
}

func TestFormatValueFunction(t *testing.T) {
	got := formatValue("f", func() {}, 3, 100)
	assert.Equal(t, typeFunction, got.Type)
	assert.Equal(t, "function", got.Value)
}

func TestFormatValueCompound(t *testing.T) {
	in := map[string]any{
		"list": []any{int64(1), "a"},
		"meta": map[string]any{"deep": true},
	}

	got := formatValue("obj", in, 3, 100)
	assert.Equal(t, typeObject, got.Type)
	assert.Equal(t, "Object(2)", got.Value)
	assert.True(t, got.Expandable)
	require.Len(t, got.Children, 2)

	// Children of objects are sorted by key.
	list := got.Children[0]
	assert.Equal(t, "list", list.Name)
	assert.Equal(t, typeArray, list.Type)
	assert.Equal(t, "Array(2)", list.Value)
	require.Len(t, list.Children, 2)
	assert.Equal(t, "0", list.Children[0].Name)
	assert.Equal(t, "1", list.Children[0].Value)
	assert.Equal(t, `"a"`, list.Children[1].Value)

	meta := got.Children[1]
	assert.Equal(t, "meta", meta.Name)
	require.Len(t, meta.Children, 1)
	assert.Equal(t, "deep", meta.Children[0].Name)
	assert.Equal(t, typeBoolean, meta.Children[0].Type)
}

func TestFormatValueDepthLimit(t *testing.T) {
	in := map[string]any{"a": map[string]any{"b": map[string]any{"c": int64(1)}}}

	got := formatValue("x", in, 2, 100)
	require.Len(t, got.Children, 1)
	inner := got.Children[0]
	require.Len(t, inner.Children, 1)
	bottom := inner.Children[0]
	assert.Equal(t, "Object(1)", bottom.Value)
	assert.Empty(t, bottom.Children, "expansion must stop at the depth limit")
	assert.True(t, bottom.Expandable, "a depth-cut node still reports entries to expand")
}

func TestTruncateIsRuneSafe(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 2))
	assert.Equal(t, `"日本語…`, truncate(`"日本語テスト"`, 4))
	assert.Equal(t, "abcd", truncate("abcd", 0), "zero means unlimited")
}

const inspectSource = `var g = 10;
function work(a) {
  var local = a * 2;
  var big = "0123456789012345";
  return local;
}
var r = work(4);
r;`

// pauseInWork loads inspectSource, breaks on its return statement, and
// returns the paused frames.
func pauseInWork(t *testing.T, e *Engine) []FrameSummary {
	t.Helper()
	events := eventChan(e, EventPaused)

	mustLoad(t, e, inspectSource)
	_, err := e.AddBreakpoint(5)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))
	paused := waitEvent(t, events, EventPaused)
	return paused.Data.(PauseData).Frames
}

func TestGetVariablesMergesScopes(t *testing.T) {
	e := newTestEngine(t, WithMaxValueLength(10))
	frames := pauseInWork(t, e)
	require.Len(t, frames, 2)
	assert.Equal(t, "work", frames[1].FunctionName)

	vars, err := e.GetVariables(frames[1].ID)
	require.NoError(t, err)

	var names []string
	for _, v := range vars {
		names = append(names, v.Name)
	}
	// Locals sorted first, then unshadowed globals; the function's own
	// name is local and must not repeat from the global scope.
	assert.Equal(t, []string{"a", "big", "local", "work", "g"}, names)

	assert.Equal(t, "4", findVar(t, vars, "a").Value)
	assert.Equal(t, "8", findVar(t, vars, "local").Value)
	assert.Equal(t, "10", findVar(t, vars, "g").Value)
	assert.Equal(t, typeFunction, findVar(t, vars, "work").Type)

	big := findVar(t, vars, "big")
	assert.Equal(t, typeString, big.Type)
	assert.Equal(t, `"012345678…`, big.Value, "display strings honor the length limit")

	e.Stop()
}

func TestGetVariablesMainFrameSeesGlobals(t *testing.T) {
	e := newTestEngine(t)
	frames := pauseInWork(t, e)
	require.Len(t, frames, 2)

	vars, err := e.GetVariables(0)
	require.NoError(t, err)
	assert.Equal(t, "10", findVar(t, vars, "g").Value)

	e.Stop()
}

func TestGetVariablesUnknownFrame(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.GetVariables(42)
	var nfe *errors.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "frame", nfe.Resource)
}

func TestGetVariablesDepthOption(t *testing.T) {
	e := newTestEngine(t, WithMaxVariableDepth(2))
	events := eventChan(e, EventPaused)

	mustLoad(t, e, "var obj = { meta: { level: { deep: true } } };\nobj;")
	_, err := e.AddBreakpoint(2)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))
	waitEvent(t, events, EventPaused)

	vars, err := e.GetVariables(0)
	require.NoError(t, err)

	obj := findVar(t, vars, "obj")
	require.Len(t, obj.Children, 1)
	meta := obj.Children[0]
	require.Len(t, meta.Children, 1)
	level := meta.Children[0]
	assert.Equal(t, "Object(1)", level.Value)
	assert.Empty(t, level.Children)

	e.Stop()
}

func TestEvaluateInFrame(t *testing.T) {
	e := newTestEngine(t)
	frames := pauseInWork(t, e)
	frameID := frames[1].ID

	result, err := e.Evaluate("local + a", frameID)
	require.NoError(t, err)
	assert.Equal(t, "local + a", result.Name)
	assert.Equal(t, typeNumber, result.Type)
	assert.Equal(t, "12", result.Value)

	// Globals stay visible inside the frame.
	result, err = e.Evaluate("g * 2", frameID)
	require.NoError(t, err)
	assert.Equal(t, "20", result.Value)

	e.Stop()
}

func TestEvaluateIntegrationHelpers(t *testing.T) {
	e := newTestEngine(t)
	frames := pauseInWork(t, e)
	frameID := frames[0].ID

	e.Set("extract", "hello")

	result, err := e.Evaluate("getLastExtract()", frameID)
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, result.Value)

	result, err = e.Evaluate(`set("var1", "x")`, frameID)
	require.NoError(t, err)
	assert.Equal(t, "1", result.Value)
	stored, ok := e.Variable("var1")
	assert.True(t, ok)
	assert.Equal(t, "x", stored)

	e.Stop()
}

func TestEvaluateErrors(t *testing.T) {
	e := newTestEngine(t)
	frames := pauseInWork(t, e)
	frameID := frames[0].ID

	_, err := e.Evaluate("1 +", frameID)
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = e.Evaluate("g ?? 1", 99)
	var nfe *errors.NotFoundError
	require.ErrorAs(t, err, &nfe)

	e.Stop()
}

func TestFormatValueLongStringFromMacro(t *testing.T) {
	e := newTestEngine(t, WithMaxValueLength(10))
	events := eventChan(e, EventPaused)

	long := strings.Repeat("x", 40)
	mustLoad(t, e, "var s = \""+long+"\";\ns;")
	_, err := e.AddBreakpoint(2)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))
	waitEvent(t, events, EventPaused)

	vars, err := e.GetVariables(0)
	require.NoError(t, err)
	s := findVar(t, vars, "s")
	assert.Equal(t, `"xxxxxxxxx…`, s.Value)

	e.Stop()
}
