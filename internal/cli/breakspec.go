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
	"fmt"
	"strconv"
	"strings"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/breakpoint"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

// breakSpec is the parsed form of a --break flag value or a shell break
// argument: "line[:col][?condition]".
type breakSpec struct {
	line      int
	column    int
	condition string
}

// options converts the parsed form into breakpoint options for the line.
func (s breakSpec) options() []breakpoint.Option {
	var opts []breakpoint.Option
	if s.column > 0 {
		opts = append(opts, breakpoint.WithColumn(s.column))
	}
	if s.condition != "" {
		opts = append(opts, breakpoint.WithCondition(s.condition))
	}
	return opts
}

// parseBreakSpec parses "line[:col][?condition]". The condition keeps its
// spelling verbatim, including any '?' characters it contains.
func parseBreakSpec(raw string) (breakSpec, error) {
	var spec breakSpec

	pos := strings.TrimSpace(raw)
	if i := strings.Index(pos, "?"); i >= 0 {
		spec.condition = strings.TrimSpace(pos[i+1:])
		pos = strings.TrimSpace(pos[:i])
		if spec.condition == "" {
			return spec, invalidBreakSpec(raw, "empty condition after '?'")
		}
	}

	if pos == "" {
		return spec, invalidBreakSpec(raw, "missing line number")
	}

	linePart, colPart, hasColumn := strings.Cut(pos, ":")

	line, err := strconv.Atoi(linePart)
	if err != nil {
		return spec, invalidBreakSpec(raw, fmt.Sprintf("line %q is not a number", linePart))
	}
	if line < 1 {
		return spec, invalidBreakSpec(raw, fmt.Sprintf("line must be 1-based, got %d", line))
	}
	spec.line = line

	if hasColumn {
		col, err := strconv.Atoi(colPart)
		if err != nil {
			return spec, invalidBreakSpec(raw, fmt.Sprintf("column %q is not a number", colPart))
		}
		if col < 1 {
			return spec, invalidBreakSpec(raw, fmt.Sprintf("column must be 1-based, got %d", col))
		}
		spec.column = col
	}

	return spec, nil
}

func invalidBreakSpec(raw, message string) error {
	return &errors.ValidationError{
		Field:      "break",
		Message:    fmt.Sprintf("%s in %q", message, raw),
		Suggestion: "use line[:column][?condition], e.g. 12, 12:5, or 12?count > 3",
	}
}
