package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dirstore", cmd.Use)
	assert.Contains(t, cmd.Long, "half-written records read as absent")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"set", "get", "exists", "delete", "pop", "info", "keys", "clear", "export", "import", "watch"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	rootFlag := cmd.PersistentFlags().Lookup("root")
	require.NotNil(t, rootFlag)
	assert.Equal(t, "r", rootFlag.Shorthand)

	lockFlag := cmd.PersistentFlags().Lookup("lock-timeout")
	require.NotNil(t, lockFlag)
	assert.Equal(t, "5s", lockFlag.DefValue)

	for _, name := range []string{"config", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestSetCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	setCmd, _, err := cmd.Find([]string{"set"})
	require.NoError(t, err)

	typeFlag := setCmd.Flags().Lookup("type")
	require.NotNil(t, typeFlag)
	assert.Equal(t, "t", typeFlag.Shorthand)

	for _, name := range []string{"tagged", "override"} {
		f := setCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "false", f.DefValue)
	}
}

func TestKeysAndClearFlags(t *testing.T) {
	cmd := NewRootCommand()

	keysCmd, _, err := cmd.Find([]string{"keys"})
	require.NoError(t, err)
	assert.NotNil(t, keysCmd.Flags().Lookup("long"))

	clearCmd, _, err := cmd.Find([]string{"clear"})
	require.NoError(t, err)
	yes := clearCmd.Flags().Lookup("yes")
	require.NotNil(t, yes)
	assert.Equal(t, "false", yes.DefValue)

	importCmd, _, err := cmd.Find([]string{"import"})
	require.NoError(t, err)
	assert.NotNil(t, importCmd.Flags().Lookup("override"))
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("yaml"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "keys"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "configuration")
}
