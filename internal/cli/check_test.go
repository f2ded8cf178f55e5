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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkMacro = `function greet(name) {
  return "hi " + name;
}
greet("world");`

func TestCheckCommandReport(t *testing.T) {
	path := writeMacro(t, checkMacro)

	out, _, err := runCLI(t, "", "check", path)
	require.NoError(t, err)

	assert.Contains(t, out, "executable lines")
	assert.Contains(t, out, "Breakpoint-eligible lines:")
	assert.Contains(t, out, "FUNCTION")
	assert.Contains(t, out, "greet")
	assert.Contains(t, out, "name")
}

func TestCheckCommandJSON(t *testing.T) {
	path := writeMacro(t, checkMacro)

	out, _, err := runCLI(t, "", "check", "--json", path)
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, path, report.File)
	assert.NotEmpty(t, report.EligibleLines)
	require.Len(t, report.Functions, 1)
	assert.Equal(t, "greet", report.Functions[0].Name)
	assert.Equal(t, []string{"name"}, report.Functions[0].Params)
}

func TestCheckCommandSyntaxError(t *testing.T) {
	path := writeMacro(t, "function broken( {")

	_, errOut, err := runCLI(t, "", "check", path)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitInvalidMacro, exitErr.Code)
	assert.Contains(t, errOut, path+":")
}

func TestFormatLineList(t *testing.T) {
	tests := []struct {
		name  string
		lines []int
		want  string
	}{
		{"empty", nil, "none"},
		{"single", []int{1}, "1"},
		{"pair", []int{1, 2}, "1, 2"},
		{"run", []int{1, 2, 3}, "1-3"},
		{"mixed", []int{1, 2, 3, 5, 7, 8, 9}, "1-3, 5, 7-9"},
		{"separate pairs", []int{4, 5, 9, 10}, "4, 5, 9, 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatLineList(tt.lines))
		})
	}
}
