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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "macrodbg", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-format"))
}

func TestSetVersion(t *testing.T) {
	defer SetVersion("dev", "unknown", "unknown")

	SetVersion("1.2.3", "abc1234", "2026-01-02")
	v, c, b := GetVersion()
	assert.Equal(t, "1.2.3", v)
	assert.Equal(t, "abc1234", c)
	assert.Equal(t, "2026-01-02", b)
}

func TestLoadSessionConfigFlagOverlay(t *testing.T) {
	isolateConfig(t)

	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug", "--log-format", "json"}))

	cfg, err := loadSessionConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadSessionConfigReadsFile(t *testing.T) {
	isolateConfig(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `log:
  level: warn
engine:
  pause_on_exception: true
breakpoints:
  - line: 7
    condition: count > 3
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath}))

	cfg, err := loadSessionConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Engine.PauseOnException)
	require.Len(t, cfg.Breakpoints, 1)
	assert.Equal(t, 7, cfg.Breakpoints[0].Line)
	assert.Equal(t, "count > 3", cfg.Breakpoints[0].Condition)
	assert.True(t, cfg.Breakpoints[0].Enabled, "breakpoints default to enabled")
}

func TestLoadSessionConfigFlagOverlayBeatsFile(t *testing.T) {
	isolateConfig(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: warn\n"), 0o644))

	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "--log-level", "error"}))

	cfg, err := loadSessionConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadSessionConfigRejectsBadLevel(t *testing.T) {
	isolateConfig(t)

	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "shout"}))

	_, err := loadSessionConfig(cmd)
	require.Error(t, err)

	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "log.level", valErr.Field)
}
