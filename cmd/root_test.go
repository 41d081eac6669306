package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "run", "candidates", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "profiler", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCandidatesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range candidatesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"add", "get", "list", "counts", "retry", "add-job", "watch"} {
		assert.True(t, names[name], "expected candidates subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunCommand_Args(t *testing.T) {
	assert.Error(t, runCmd.Args(runCmd, nil))
	assert.NoError(t, runCmd.Args(runCmd, []string{"text_extraction"}))
	assert.ElementsMatch(t, stageNames(), runCmd.ValidArgs)
}

func TestListCommand_Flags(t *testing.T) {
	flag := candidatesListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}
