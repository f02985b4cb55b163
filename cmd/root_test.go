package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozark-survey/cavedb/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"serve", "migrate", "grants", "history"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "cavedb", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestHistoryCommand_Flags(t *testing.T) {
	flag := historyCmd.Flags().Lookup("out")
	require.NotNil(t, flag, "history command should have --out flag")
}

func TestGrantsCommand_HasSeed(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range grantsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["seed"])
}

func TestFormatChangeValue(t *testing.T) {
	prev := 1250.0
	value, previous := formatChangeValue(model.DoubleValue{Value: 1400, Previous: &prev})
	assert.Equal(t, "1400", value)
	assert.Equal(t, "1250", previous)

	value, previous = formatChangeValue(model.StringValue{Value: "Blowing Cave"})
	assert.Equal(t, "Blowing Cave", value)
	assert.Empty(t, previous)
}
