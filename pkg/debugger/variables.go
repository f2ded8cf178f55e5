package debugger

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

// VariableValue is the rendered form of one variable, ready for display.
// Compound values carry Children up to the engine's depth limit; Value is a
// display string capped at the engine's length limit. Expandable marks
// arrays and objects with entries, including ones whose Children were cut by
// the depth limit.
type VariableValue struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Value      string          `json:"value"`
	Expandable bool            `json:"expandable"`
	Children   []VariableValue `json:"children,omitempty"`
}

// Type tags follow the macro language's view of values, not Go's.
const (
	typeUndefined = "undefined"
	typeBoolean   = "boolean"
	typeNumber    = "number"
	typeString    = "string"
	typeArray     = "array"
	typeObject    = "object"
	typeFunction  = "function"
)

// GetVariables returns the variables visible in a stack frame: the frame's
// locals first, then names from its scope chain that the locals do not
// shadow. Each group is sorted by name. Returns *errors.NotFoundError when no
// frame has the given id.
func (e *Engine) GetVariables(frameID int) ([]VariableValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	frame := e.frameByIDLocked(frameID)
	if frame == nil {
		return nil, &errors.NotFoundError{Resource: "frame", ID: strconv.Itoa(frameID)}
	}

	seen := make(map[string]bool, len(frame.Locals))
	out := make([]VariableValue, 0, len(frame.Locals))

	for _, name := range sortedKeys(frame.Locals) {
		seen[name] = true
		out = append(out, formatValue(name, frame.Locals[name], e.maxDepth, e.maxValueLen))
	}
	for _, scope := range frame.Scopes {
		for _, name := range sortedKeys(scope.Variables) {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, formatValue(name, scope.Variables[name], e.maxDepth, e.maxValueLen))
		}
	}
	return out, nil
}

// Evaluate runs an expression in the context of a stack frame: the frame's
// visible variables plus the integration helpers play, set, getLastExtract,
// and getLastError. The result is rendered like a variable, named after the
// expression text. Failures come back as error values, never panics.
func (e *Engine) Evaluate(expr string, frameID int) (VariableValue, error) {
	e.mu.Lock()
	frame := e.frameByIDLocked(frameID)
	if frame == nil {
		e.mu.Unlock()
		return VariableValue{}, &errors.NotFoundError{Resource: "frame", ID: strconv.Itoa(frameID)}
	}
	env := e.evalContextLocked(frame)
	maxDepth, maxLen := e.maxDepth, e.maxValueLen
	result, err := e.eval.Evaluate(expr, env)
	// play() inside the expression may have queued events.
	e.drainAndUnlock()

	if err != nil {
		return VariableValue{}, err
	}
	return formatValue(expr, result, maxDepth, maxLen), nil
}

// formatValue renders a captured value. depth counts remaining levels of
// Children to populate for arrays and objects.
func formatValue(name string, value any, depth, maxLen int) VariableValue {
	v := VariableValue{Name: name}

	switch val := value.(type) {
	case nil:
		// Undefined and null both export as nil; report undefined.
		v.Type = typeUndefined
		v.Value = "undefined"
	case bool:
		v.Type = typeBoolean
		v.Value = strconv.FormatBool(val)
	case string:
		v.Type = typeString
		v.Value = truncate(strconv.Quote(val), maxLen)
	case int64:
		v.Type = typeNumber
		v.Value = strconv.FormatInt(val, 10)
	case float64:
		v.Type = typeNumber
		v.Value = formatNumber(val)
	case []any:
		v.Type = typeArray
		v.Value = fmt.Sprintf("Array(%d)", len(val))
		v.Expandable = len(val) > 0
		if depth > 0 {
			v.Children = make([]VariableValue, 0, len(val))
			for i, item := range val {
				v.Children = append(v.Children, formatValue(strconv.Itoa(i), item, depth-1, maxLen))
			}
		}
	case map[string]any:
		v.Type = typeObject
		v.Value = fmt.Sprintf("Object(%d)", len(val))
		v.Expandable = len(val) > 0
		if depth > 0 {
			keys := sortedKeys(val)
			v.Children = make([]VariableValue, 0, len(keys))
			for _, key := range keys {
				v.Children = append(v.Children, formatValue(key, val[key], depth-1, maxLen))
			}
		}
	case time.Time:
		v.Type = typeObject
		v.Value = truncate(val.Format(time.RFC3339), maxLen)
	default:
		v.Type, v.Value = reflectValue(value, maxLen)
	}
	return v
}

// reflectValue classifies values outside the common runtime export types:
// other integer widths produced by expression evaluation, Go funcs behind
// exported runtime functions, and anything a host callback handed back.
func reflectValue(value any, maxLen int) (string, string) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return typeNumber, strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return typeNumber, strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return typeNumber, formatNumber(rv.Float())
	case reflect.Bool:
		return typeBoolean, strconv.FormatBool(rv.Bool())
	case reflect.String:
		return typeString, truncate(strconv.Quote(rv.String()), maxLen)
	case reflect.Func:
		return typeFunction, "function"
	default:
		return typeObject, truncate(fmt.Sprintf("%v", value), maxLen)
	}
}

// formatNumber renders a float the way macro code prints it: integral values
// without a fraction, NaN and infinities by name.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// truncate caps a display string at max runes, appending an ellipsis marker.
// max <= 0 means unlimited.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
