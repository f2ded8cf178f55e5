// Package expression evaluates debugger expressions: breakpoint conditions,
// logpoint message segments, and interactive evaluate requests. Expressions
// run against a flat name→value context supplied by the caller, never against
// the macro runtime itself, so evaluation can happen while the macro is
// suspended.
package expression

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

// Evaluator compiles and runs expressions, caching compiled programs by
// expression text. Breakpoint conditions are evaluated on every qualifying
// hit, so the cache matters.
type Evaluator struct {
	cache  map[string]*vm.Program
	mu     sync.RWMutex
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an evaluator with an empty program cache.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		cache:  make(map[string]*vm.Program),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the expression against the given context and returns its
// value. Unknown names resolve to nil rather than failing, matching how the
// macro language treats undefined lookups in conditions.
//
// Compile failures return *errors.ValidationError; runtime failures return
// *errors.EvaluationError. Both are returned as values, never panicked.
func (e *Evaluator) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	if env == nil {
		env = map[string]interface{}{}
	}

	program, err := e.compile(expression, env)
	if err != nil {
		return nil, err
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, &errors.EvaluationError{
			Expression: expression,
			Message:    err.Error(),
			Cause:      err,
		}
	}
	return result, nil
}

// EvaluateBool runs the expression and reduces the result to a boolean using
// the macro language's truthiness rules (false, null, 0, NaN, and "" are
// falsy; everything else is truthy).
func (e *Evaluator) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	result, err := e.Evaluate(expression, env)
	if err != nil {
		return false, err
	}
	return Truthy(result), nil
}

// compile returns a cached program or compiles and caches one.
func (e *Evaluator) compile(expression string, env map[string]interface{}) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:      "expression",
			Message:    fmt.Sprintf("invalid expression %q: %v", expression, err),
			Suggestion: "check the expression syntax",
		}
	}

	e.mu.Lock()
	e.cache[expression] = program
	e.mu.Unlock()

	return program, nil
}

// ClearCache empties the compiled-program cache. The engine calls this when
// new code is loaded so stale programs do not accumulate across sessions.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*vm.Program)
}

// CacheSize returns the number of cached programs.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// Truthy applies the macro language's truthiness rules to an evaluation
// result.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int8:
		return val != 0
	case int16:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case uint:
		return val != 0
	case uint8:
		return val != 0
	case uint16:
		return val != 0
	case uint32:
		return val != 0
	case uint64:
		return val != 0
	case float32:
		return val != 0 && !math.IsNaN(float64(val))
	case float64:
		return val != 0 && !math.IsNaN(val)
	default:
		// Objects, arrays, and functions are always truthy.
		return true
	}
}
