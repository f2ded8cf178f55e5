package expression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

func TestEvaluator_Conditions(t *testing.T) {
	e := New()
	env := map[string]interface{}{
		"i":     int64(7),
		"name":  "checkout",
		"done":  false,
		"items": []interface{}{"a", "b"},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "comparison true", expr: "i > 5", want: true},
		{name: "comparison false", expr: "i > 10", want: false},
		{name: "string equality", expr: `name == "checkout"`, want: true},
		{name: "boolean variable", expr: "done", want: false},
		{name: "negation", expr: "!done", want: true},
		{name: "compound", expr: `i >= 7 && name != ""`, want: true},
		{name: "bare truthy number", expr: "i", want: true},
		{name: "bare string", expr: "name", want: true},
		{name: "array is truthy", expr: "items", want: true},
		{name: "arithmetic result", expr: "i - 7", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateBool(tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_UndefinedNamesResolveToNil(t *testing.T) {
	e := New()

	got, err := e.EvaluateBool("missing", map[string]interface{}{"present": 1})
	require.NoError(t, err)
	assert.False(t, got, "undefined name should be falsy")
}

func TestEvaluator_CompileErrorIsValidationError(t *testing.T) {
	e := New()

	_, err := e.Evaluate("i +* 2", map[string]interface{}{"i": 1})
	require.Error(t, err)

	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Zero(t, e.CacheSize(), "failed compiles must not be cached")
}

func TestEvaluator_RuntimeErrorIsEvaluationError(t *testing.T) {
	e := New()

	_, err := e.Evaluate("i / d", map[string]interface{}{"i": 1, "d": 0})
	require.Error(t, err)

	var evalErr *errors.EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "i / d", evalErr.Expression)
}

func TestEvaluator_CachesCompiledPrograms(t *testing.T) {
	e := New()
	env := map[string]interface{}{"x": int64(1)}

	_, err := e.Evaluate("x + 1", env)
	require.NoError(t, err)
	assert.Equal(t, 1, e.CacheSize())

	// Same expression against a different context reuses the program.
	got, err := e.Evaluate("x + 1", map[string]interface{}{"x": int64(41)})
	require.NoError(t, err)
	assert.EqualValues(t, 42, got)
	assert.Equal(t, 1, e.CacheSize())

	e.ClearCache()
	assert.Zero(t, e.CacheSize())
}

func TestEvaluator_FunctionsInContext(t *testing.T) {
	e := New()
	env := map[string]interface{}{
		"getLastExtract": func() string { return "extracted-value" },
	}

	got, err := e.Evaluate("getLastExtract()", env)
	require.NoError(t, err)
	assert.Equal(t, "extracted-value", got)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{name: "nil", value: nil, want: false},
		{name: "false", value: false, want: false},
		{name: "true", value: true, want: true},
		{name: "zero int", value: 0, want: false},
		{name: "zero int64", value: int64(0), want: false},
		{name: "nonzero", value: int64(3), want: true},
		{name: "zero float", value: 0.0, want: false},
		{name: "NaN", value: math.NaN(), want: false},
		{name: "empty string", value: "", want: false},
		{name: "string", value: "x", want: true},
		{name: "empty array", value: []interface{}{}, want: true},
		{name: "map", value: map[string]interface{}{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.value))
		})
	}
}
