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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHelpTestRoot() *cobra.Command {
	rootCmd := NewRootCommand()
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.SetHelpCommand(NewHelpCommand(rootCmd))
	return rootCmd
}

func TestHelpCommandListsAllJSON(t *testing.T) {
	rootCmd := newHelpTestRoot()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"help", "--json"})
	require.NoError(t, rootCmd.Execute())

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))

	assert.Nil(t, resp.Command)
	require.NotEmpty(t, resp.Commands)

	names := make([]string, 0, len(resp.Commands))
	for _, c := range resp.Commands {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "check")

	globals := make([]string, 0, len(resp.GlobalFlags))
	for _, f := range resp.GlobalFlags {
		globals = append(globals, f.Name)
	}
	assert.Contains(t, globals, "config")
	assert.Contains(t, globals, "log-level")
}

func TestHelpCommandSingleJSON(t *testing.T) {
	rootCmd := newHelpTestRoot()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"help", "run", "--json"})
	require.NoError(t, rootCmd.Execute())

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))

	assert.Empty(t, resp.Commands)
	require.NotNil(t, resp.Command)
	assert.Equal(t, "run", resp.Command.Name)
	assert.NotEmpty(t, resp.Command.Examples)

	flagNames := make([]string, 0, len(resp.Command.Flags))
	for _, f := range resp.Command.Flags {
		flagNames = append(flagNames, f.Name)
	}
	assert.Contains(t, flagNames, "break")
	assert.Contains(t, flagNames, "watch")
}

func TestHelpCommandUnknownTarget(t *testing.T) {
	rootCmd := newHelpTestRoot()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"help", "frobnicate"})
	require.Error(t, rootCmd.Execute())
}

func TestHelpCommandHumanOutput(t *testing.T) {
	rootCmd := newHelpTestRoot()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"help"})
	require.NoError(t, rootCmd.Execute())

	assert.False(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"),
		"plain help must not be JSON")
	assert.Contains(t, buf.String(), "macrodbg")
}

func TestExtractCommandMetadata(t *testing.T) {
	cmd := &cobra.Command{
		Use:     "testcmd",
		Short:   "A test command",
		Long:    "A longer description",
		Example: "testcmd --flag value",
		Aliases: []string{"tc"},
	}
	cmd.Flags().String("flag", "default", "a test flag")
	cmd.Flags().Bool("bool-flag", false, "a boolean flag")

	metadata := extractCommandMetadata(cmd)

	assert.Equal(t, "testcmd", metadata.Name)
	assert.Equal(t, "A test command", metadata.Short)
	assert.Equal(t, "A longer description", metadata.Long)
	assert.Equal(t, []string{"tc"}, metadata.Aliases)
	assert.Len(t, metadata.Flags, 2)
}

func TestExtractGlobalFlags(t *testing.T) {
	rootCmd := &cobra.Command{Use: "test"}
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.PersistentFlags().String("config", "", "config file")

	flags := extractGlobalFlags(rootCmd)
	require.Len(t, flags, 2)

	byName := map[string]FlagMetadata{}
	for _, f := range flags {
		byName[f.Name] = f
	}
	assert.Equal(t, "verbose output", byName["verbose"].Usage)
	assert.Contains(t, byName, "config")
}
