// Copyright 2025 Chapel Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the typed error values shared across the macro
// debugger. Every public operation reports failures by returning one of
// these types; nothing in the module panics across an API boundary.
package errors

import "fmt"

// SyntaxError reports that macro source failed to parse. Line and Column are
// 1-based; Offset is the byte offset of the first error in the source.
type SyntaxError struct {
	Message string
	Line    int
	Column  int
	Offset  int
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

// EvaluationError reports that a debugger expression (a breakpoint
// condition, a logpoint segment, or an evaluate request) failed to compile
// or run.
type EvaluationError struct {
	Expression string
	Message    string
	Cause      error
}

func (e *EvaluationError) Error() string {
	if e.Expression != "" {
		return fmt.Sprintf("cannot evaluate %q: %s", e.Expression, e.Message)
	}
	return fmt.Sprintf("evaluation failed: %s", e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// StateError reports an operation that is not legal in the debugger's
// current state, such as starting a session that is already running.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while debugger is %s", e.Op, e.State)
}

// NotFoundError reports a lookup of a resource (breakpoint, stack frame)
// that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ExecutionError reports an exception that escaped the macro program. Value
// holds the thrown value when one is available; Line and Column are the last
// position the engine observed before the unwind.
type ExecutionError struct {
	Message string
	Line    int
	Column  int
	Value   interface{}
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("macro error near line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("macro error: %s", e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ValidationError reports invalid input to a debugger operation, with an
// optional suggestion for fixing it.
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (%s)", e.Suggestion)
	}
	return msg
}

// ConfigError reports a problem with debugger or session configuration.
type ConfigError struct {
	Key    string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error for %s: %s: %v", e.Key, e.Reason, e.Cause)
	}
	return fmt.Sprintf("config error for %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
