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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitErrorMessage(t *testing.T) {
	cause := fmt.Errorf("underlying")

	assert.Equal(t, "just a message", (&ExitError{Message: "just a message"}).Error())
	assert.Equal(t, "underlying", (&ExitError{Cause: cause}).Error())
	assert.Equal(t, "context: underlying", (&ExitError{Message: "context", Cause: cause}).Error())
}

func TestExitErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewExecutionError("macro failed", cause)

	assert.True(t, errors.Is(err, cause))

	var exitErr *ExitError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &exitErr))
	assert.Equal(t, ExitExecutionFailed, exitErr.Code)
}

func TestExitErrorConstructors(t *testing.T) {
	assert.Equal(t, ExitExecutionFailed, NewExecutionError("m", nil).Code)
	assert.Equal(t, ExitInvalidMacro, NewInvalidMacroError("m", nil).Code)
	assert.Equal(t, ExitConfigError, NewConfigError("m", nil).Code)
}
