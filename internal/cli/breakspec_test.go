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

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/breakpoint"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

func TestParseBreakSpec(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want breakSpec
	}{
		{"line only", "12", breakSpec{line: 12}},
		{"line and column", "12:5", breakSpec{line: 12, column: 5}},
		{"line and condition", "12?count > 3", breakSpec{line: 12, condition: "count > 3"}},
		{"full form", "12:5?count > 3", breakSpec{line: 12, column: 5, condition: "count > 3"}},
		{"surrounding whitespace", "  12  ", breakSpec{line: 12}},
		{"condition is trimmed", "4?  total >= limit  ", breakSpec{line: 4, condition: "total >= limit"}},
		{"ternary in condition", "7?flag ? 1 : 2", breakSpec{line: 7, condition: "flag ? 1 : 2"}},
		{"colon in condition", "3?s == ':'", breakSpec{line: 3, condition: "s == ':'"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBreakSpec(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBreakSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"condition without line", "?x > 1"},
		{"line not a number", "abc"},
		{"line zero", "0"},
		{"line negative", "-3"},
		{"trailing colon", "12:"},
		{"column zero", "12:0"},
		{"column not a number", "12:abc"},
		{"empty condition", "12?"},
		{"blank condition", "12?   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBreakSpec(tt.raw)
			require.Error(t, err)

			var valErr *errors.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, "break", valErr.Field)
			assert.NotEmpty(t, valErr.Suggestion)
		})
	}
}

func TestBreakSpecOptions(t *testing.T) {
	assert.Empty(t, breakSpec{line: 5}.options())
	assert.Len(t, breakSpec{line: 5, column: 2}.options(), 1)
	assert.Len(t, breakSpec{line: 5, column: 2, condition: "x > 1"}.options(), 2)

	// Applying the options must land on the breakpoint itself.
	ledger := breakpoint.NewLedger()
	spec := breakSpec{line: 5, column: 2, condition: "x > 1"}
	bp, err := ledger.Add(spec.line, spec.options()...)
	require.NoError(t, err)
	assert.Equal(t, 5, bp.Line)
	assert.Equal(t, 2, bp.Column)
	assert.Equal(t, "x > 1", bp.Condition)
}
